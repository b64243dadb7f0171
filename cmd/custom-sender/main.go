// Command custom-sender runs the verification code sender as a Lambda
// function (default), as a local HTTP server, or encrypts a test event.
//
//	custom-sender [lambda]
//	custom-sender serve [-addr :8080]
//	custom-sender encrypt -code 123456 -phone +15551234567 [-type sms]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/goliatone/go-custom-sender/app"
	"github.com/goliatone/go-custom-sender/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "custom-sender:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	mode := "lambda"
	if len(args) > 0 {
		mode, args = args[0], args[1:]
	}
	switch mode {
	case "lambda":
		return runLambda(ctx)
	case "serve":
		return runServe(ctx, args)
	case "encrypt":
		return runEncrypt(ctx, args, stdout)
	default:
		return fmt.Errorf("unknown mode %q (want lambda, serve or encrypt)", mode)
	}
}

func build(ctx context.Context, runtime map[string]any) (*app.App, error) {
	cfg, err := config.Load(ctx, runtime)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg)
}

func runLambda(ctx context.Context) error {
	built, err := build(ctx, nil)
	if err != nil {
		return err
	}
	defer built.Close()
	built.Logger.Info("starting lambda handler", "service_name", built.Config.ServiceName)

	lambda.StartWithOptions(func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		return built.Service.DeliverRaw(ctx, raw)
	}, lambda.WithContext(ctx))
	return nil
}

func runServe(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := flags.String("addr", "", "listen address (defaults to HTTP_ADDR)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	runtime := map[string]any{}
	if *addr != "" {
		runtime["http"] = map[string]any{"addr": *addr}
	}
	built, err := build(ctx, runtime)
	if err != nil {
		return err
	}
	defer built.Close()

	srv := &http.Server{
		Addr:              built.Config.HTTP.Addr,
		Handler:           built.HTTPHandler().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		built.Logger.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	built.Logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func runEncrypt(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	code := flags.String("code", "", "verification code to encrypt")
	phone := flags.String("phone", "", "recipient phone number")
	deliveryType := flags.String("type", "sms", "delivery type: sms or voice")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *code == "" || *phone == "" {
		return errors.New("encrypt: -code and -phone are required")
	}
	built, err := build(ctx, nil)
	if err != nil {
		return err
	}
	defer built.Close()

	event, err := built.EncryptEvent(ctx, *code, *phone, *deliveryType)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(event)
}
