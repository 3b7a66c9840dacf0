package pricerslack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/models"
	"github.com/slack-go/slack"
)

const priceUsage = "Usage: /price <ticker> <type> <K> <days> <spot> <sigma> [rate] [q] [market]"

var errUsage = errors.New(priceUsage)

type PriceHandler struct {
	proc        *jobs.Processor
	defaultRate float64
	log         *slog.Logger
}

func NewPriceHandler(proc *jobs.Processor, defaultRate float64, log *slog.Logger) *PriceHandler {
	return &PriceHandler{proc: proc, defaultRate: defaultRate, log: log}
}

func (h *PriceHandler) HandleCommand(ctx context.Context, cmd slack.SlashCommand, client Poster) error {
	req, err := parsePriceArgs(strings.Fields(cmd.Text), h.defaultRate)
	if err != nil {
		_, _, perr := client.PostMessage(cmd.ChannelID, slack.MsgOptionText(err.Error(), false))
		return perr
	}

	pricer := jobs.NewPricer(h.proc)
	pricer.SubmitJob(req)
	results, err := pricer.RunBatch(ctx, nil)
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return fmt.Errorf("expected one result, got %d", len(results))
	}

	h.log.Info("priced from slack", slog.String("user", cmd.UserName), slog.String("ticker", req.Ticker))
	_, _, err = client.PostMessage(cmd.ChannelID, slack.MsgOptionText(formatResult(results[0], req), false))
	return err
}

func parsePriceArgs(args []string, defaultRate float64) (jobs.JobRequest, error) {
	if len(args) < 6 || len(args) > 9 {
		return jobs.JobRequest{}, errUsage
	}

	nums := make([]float64, len(args)-2)
	for i, a := range args[2:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return jobs.JobRequest{}, fmt.Errorf("invalid number %q. %s", a, priceUsage)
		}
		nums[i] = v
	}

	typ, err := models.ParseOptionType(args[1])
	if err != nil {
		return jobs.JobRequest{}, fmt.Errorf("%v. %s", err, priceUsage)
	}
	if nums[1] != float64(int(nums[1])) {
		return jobs.JobRequest{}, fmt.Errorf("days must be a whole number. %s", priceUsage)
	}

	req := jobs.JobRequest{
		Ticker:     strings.ToUpper(args[0]),
		OptionType: string(typ),
		Strike:     nums[0],
		Days:       int(nums[1]),
		Spot:       nums[2],
		Sigma:      nums[3],
		Rate:       defaultRate,
	}
	if len(nums) > 4 {
		req.Rate = nums[4]
	}
	if len(nums) > 5 {
		req.DividendYield = nums[5]
	}
	if len(nums) > 6 {
		req.MarketPrice = nums[6]
	}
	return req, nil
}

func formatResult(res jobs.JobResult, req jobs.JobRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s %s* K=%g T=%dd spot=%.2f sigma=%.4f r=%.4f q=%.4f\n",
		res.Ticker, res.OptionType, res.Strike, res.Days, res.Spot, req.Sigma, req.Rate, req.DividendYield)
	if res.Failed() {
		fmt.Fprintf(&b, "pricing failed: %v", res.Err)
		return b.String()
	}

	fmt.Fprintf(&b, "fair value: %.4f", res.FairValue)
	typ, _ := models.ParseOptionType(res.OptionType)
	if !typ.IsAmerican() {
		p := models.Params{K: req.Strike, T: float64(req.Days) / 365, R: req.Rate, Sigma: req.Sigma, Q: req.DividendYield}
		fmt.Fprintf(&b, "\nclosed form: %.4f", models.BlackScholes(req.Spot, p, typ.IsCall()).Price)
	}
	if res.MarketPrice > 0 {
		fmt.Fprintf(&b, "\nmarket: %.4f edge: %s", res.MarketPrice, res.Edge().String())
	}
	return b.String()
}
