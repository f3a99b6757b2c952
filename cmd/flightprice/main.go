// Command flightprice trains the price model on a scraped listing table and
// serves single predictions from the persisted bundle.
//
//	flightprice train   [-config FILE]
//	flightprice predict [-config FILE] -request FILE
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/flightfare/flightprice/internal/artifacts"
	"github.com/flightfare/flightprice/internal/config"
	"github.com/flightfare/flightprice/internal/dataset"
	"github.com/flightfare/flightprice/internal/features"
	"github.com/flightfare/flightprice/internal/predictor"
	"github.com/flightfare/flightprice/internal/training"
	"github.com/flightfare/flightprice/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: flightprice <train|predict> [flags]")
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "train":
		err = runTrain(args)
	case "predict":
		err = runPredict(args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "flightprice:", err)
		os.Exit(1)
	}
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer log.Sync()

	cleaner := dataset.NewCleaner(log)
	cleaned, err := cleaner.CleanFile(cfg.Data.CSVPath)
	if err != nil {
		return err
	}

	engineer := features.NewEngineer(log)
	matrix, arts, err := engineer.Fit(cleaned.Records)
	if err != nil {
		return err
	}

	trainer := training.NewTrainer(cfg.Training, log)
	report, err := trainer.Train(context.Background(), matrix)
	if err != nil {
		return err
	}

	store := artifacts.NewStore(cfg.Artifact.Path, log)
	bundle := artifacts.NewBundle(report.Best, arts, cleaned.Stats)
	if err := store.Save(bundle); err != nil {
		return err
	}

	log.Infow("training run complete",
		"run_id", report.RunID,
		"best_model", report.BestName,
		"artifact", cfg.Artifact.Path,
	)
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	requestPath := fs.String("request", "", "path to a JSON prediction request (- for stdin)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer log.Sync()

	var data []byte
	switch *requestPath {
	case "":
		return fmt.Errorf("-request is required")
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(*requestPath)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req predictor.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	svc := predictor.NewService(log)
	if err := svc.LoadBundle(artifacts.NewStore(cfg.Artifact.Path, log)); err != nil {
		return err
	}

	price, err := svc.Predict(&req)
	if err != nil {
		return err
	}
	fmt.Printf("%.0f\n", price)
	return nil
}
