package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"factoryScope/internal/config"
	"factoryScope/internal/model"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.FactoryAddress == "" {
		return fmt.Errorf("factory address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := openStores(ctx, cfg.PGDSN, cfg.UseMemory, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeline, err := buildPipeline(cfg.FactoryAddress, stores, nil, -1, 0, logger)
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	scanner := bufio.NewScanner(inputFile)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var blocks, failed int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var block model.BlockPayload
		if err := json.Unmarshal(line, &block); err != nil {
			logger.Warn("skip undecodable line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		payload := model.WebhookPayload{
			Event: model.EventPayload{Data: model.DataPayload{Block: &block}},
		}
		summary, err := pipeline.ProcessDelivery(ctx, payload)
		if err != nil {
			logger.Error("replay block failed", zap.Int("line", lineNo), zap.Error(err))
			failed++
			continue
		}
		blocks++
		failed += summary.EventsFailed
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	logger.Info("replay done",
		zap.Int("blocks", blocks),
		zap.Int("failed", failed),
	)
	return nil
}
