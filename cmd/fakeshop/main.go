// Command fakeshop serves an in-memory shop backend for local orderstorm runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/fakeshop"
	"github.com/wesleyorama2/orderstorm/internal/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fakeshop",
		Short:        "Serve an in-memory shop backend for local load runs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         serve,
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("stock", "1=1000,2=1000", "Initial stock as 'product=units,...'")
	cmd.Flags().Duration("latency", 0, "Delay added to every response")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

func serve(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	rawStock, _ := cmd.Flags().GetString("stock")
	latency, _ := cmd.Flags().GetDuration("latency")
	level, _ := cmd.Flags().GetString("log-level")

	stock, err := parseStock(rawStock)
	if err != nil {
		return err
	}

	lc := logger.DefaultConfig()
	lc.Level = level
	log, err := logger.New(lc)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shop := fakeshop.New(fakeshop.Config{Stock: stock, Latency: latency, Logger: log})

	server := &http.Server{
		Addr:              addr,
		Handler:           shop.Handler(),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("fakeshop listening", zap.String("addr", addr), zap.Any("stock", stock))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("fakeshop stopped",
		zap.Int("users", shop.Users()),
		zap.Int("orders", shop.Orders()))
	return nil
}

// parseStock parses "1=1000,2=50".
func parseStock(s string) (map[int]int, error) {
	stock := map[int]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, units, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid stock entry %q (expected product=units)", part)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q", id)
		}
		n, err := strconv.Atoi(strings.TrimSpace(units))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid units %q for product %d", units, pid)
		}
		stock[pid] = n
	}
	if len(stock) == 0 {
		return nil, fmt.Errorf("no products in %q", s)
	}
	return stock, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
