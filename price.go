package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"
)

var priceCommand = &cli.Command{
	Name:      "price",
	Usage:     "price one option from flags or a batch from a JSON file",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON array of job requests"},
		&cli.StringFlag{Name: "ticker", Value: "CLI"},
		&cli.StringFlag{Name: "type", Usage: "european_call, european_put, american_call or american_put"},
		&cli.Float64Flag{Name: "strike", Aliases: []string{"K"}},
		&cli.IntFlag{Name: "days", Aliases: []string{"T"}, Usage: "calendar days to expiry"},
		&cli.Float64Flag{Name: "spot", Aliases: []string{"S"}},
		&cli.Float64Flag{Name: "sigma"},
		&cli.Float64Flag{Name: "rate", Aliases: []string{"r"}, Usage: "risk-free rate, defaults to risk_free_rate from config"},
		&cli.Float64Flag{Name: "q", Usage: "continuous dividend yield"},
		&cli.Float64Flag{Name: "market", Usage: "market price of the option, for edge"},
		&cli.IntFlag{Name: "workers", Usage: "worker goroutines, defaults to workers from config"},
		&cli.BoolFlag{Name: "progress", Value: true, Usage: "show a progress bar on stderr"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write results to this file instead of stdout"},
	},
	Action: runPrice,
}

func readRequests(c *cli.Context, defaultRate float64) ([]jobs.JobRequest, error) {
	if path := c.String("file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var reqs []jobs.JobRequest
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return reqs, nil
	}

	if c.String("type") == "" {
		return nil, errors.New("either --file or --type with contract flags is required")
	}
	rate := defaultRate
	if c.IsSet("rate") {
		rate = c.Float64("rate")
	}
	return []jobs.JobRequest{{
		Ticker:        c.String("ticker"),
		OptionType:    c.String("type"),
		Strike:        c.Float64("strike"),
		Days:          c.Int("days"),
		Spot:          c.Float64("spot"),
		Sigma:         c.Float64("sigma"),
		Rate:          rate,
		DividendYield: c.Float64("q"),
		MarketPrice:   c.Float64("market"),
	}}, nil
}

func runPrice(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the results
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		logger.Set(logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	}
	reqs, err := readRequests(c, cfg.RiskFreeRate)
	if err != nil {
		return err
	}

	pricer := jobs.NewPricer(newProcessor(cfg, c.Int("workers")))
	for _, req := range reqs {
		if pricer.SubmitJob(req) == jobs.DuplicateDropped {
			fmt.Fprintf(os.Stderr, "Skipping duplicate %s %s K=%g T=%d\n", req.Ticker, req.OptionType, req.Strike, req.Days)
		}
	}

	var (
		onResult jobs.ResultHandler
		p        *mpb.Progress
		bar      *mpb.Bar
	)
	if c.Bool("progress") && pricer.Pending() > 0 {
		p = mpb.NewWithContext(c.Context, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
		bar = p.AddBar(int64(pricer.Pending()),
			mpb.PrependDecorators(
				decor.Name("Pricing"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
		onResult = func(jobs.JobResult) error {
			bar.Increment()
			return nil
		}
	}

	results, err := pricer.RunBatch(c.Context, onResult)
	if p != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeResults(out, results)
}

func writeResults(w io.Writer, results []jobs.JobResult) error {
	if results == nil {
		results = []jobs.JobResult{}
	}
	j, err := json.MarshalIndent(results, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(j))
	return err
}
