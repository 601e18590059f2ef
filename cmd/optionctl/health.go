package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionsdesk/pkg/grpcclient"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "health",
		Short:   "Check the serving status of a running optionsdesk",
		Example: `  optionctl health --addr localhost:50051`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
				Target:         addr,
				ConnTimeout:    timeout,
				RequestTimeout: timeout,
				MaxRetries:     2,
				RetryDelay:     200 * time.Millisecond,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			resp, err := healthpb.NewHealthClient(conn).Check(cmd.Context(), &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return fmt.Errorf("health check %s: %w", addr, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", addr, resp.GetStatus())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC address of the service")
	cmd.Flags().StringVar(&service, "service", "", "service name, empty checks the whole server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "connect and request timeout")
	return cmd
}
