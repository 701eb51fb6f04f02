/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/surveylink/api"
	"github.com/blnkfinance/surveylink/config"
	trace "github.com/blnkfinance/surveylink/internal/traces"
)

const shutdownGrace = 10 * time.Second

func initializeRouter(s *surveylinkInstance) *gin.Engine {
	return api.NewAPI(s.linker, s.cnf).Router()
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName, cfg.Tracing.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

// startServer serves router until ctx is cancelled, then drains in-flight requests.
func startServer(ctx context.Context, router *gin.Engine, cfg config.ServerConfig) error {
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

/*
serverCommands returns the Cobra command that starts the linkage API.
It sets up tracing and the routes, then serves until interrupted.
*/
func serverCommands(s *surveylinkInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		Aliases: []string{"start"},
		Short:   "start surveylink server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := initializeTracing(ctx, s.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logrus.Errorf("Error during shutdown: %v", err)
				}
			}()

			router := initializeRouter(s)
			if err := startServer(ctx, router, s.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
