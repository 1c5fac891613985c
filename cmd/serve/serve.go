// Package serve runs the HTTP upload endpoint
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/cep-verify/cmd/root"
	"fjacquet/cep-verify/internal/server"

	"github.com/spf13/cobra"
)

var port int

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve batch verification over HTTP",
	Long: `Serve batch verification over HTTP.

POST a multipart form with the batch CSV in the "file" field to "/". The response
body is the verdict string, one "trackingKey,true;" or "trackingKey,false;" per row.
GET /healthz answers "ok".

Example:
  cep-verify serve --port 3000
  curl -F file=@batch.csv http://localhost:3000/`,
	RunE: serveFunc,
}

func init() {
	Cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
}

func serveFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	cfg := c.GetConfig()
	if _, err := c.GetDriver(); err != nil {
		return err
	}

	listenPort := cfg.Server.Port
	if port != 0 {
		listenPort = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(c.GetVerifier(), int64(cfg.Server.MaxUploadMB)<<20, c.GetLogger())
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", listenPort))
}
