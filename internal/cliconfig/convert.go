package cliconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/render"
	"github.com/bft-labs/reportship/pkg/reportship"
)

// ToReportshipConfig converts a validated CLI config into the library config.
func ToReportshipConfig(c Config) (reportship.Config, error) {
	req, err := c.Aggregate.request()
	if err != nil {
		return reportship.Config{}, err
	}
	specs, err := renderSpecs(c.Render)
	if err != nil {
		return reportship.Config{}, err
	}

	var src reportship.RecipientSource
	switch c.Recipients.Strategy {
	case StrategyStatic:
		src = reportship.StaticRecipients{Addresses: c.Recipients.Addresses}
	case StrategyFile:
		src = reportship.RecipientsFromFile{Path: c.AddressSource}
	default:
		src = reportship.RecipientsFromTable{}
	}

	return reportship.Config{
		Source:             c.Source,
		Sheet:              c.Sheet,
		Categorical:        c.Clean.Categorical,
		Aggregate:          req,
		Render:             specs,
		AllowPartialRender: c.AllowPartialRender,
		Recipients:         src,
		Subject:            c.Subject,
		Body:               c.Body,
		ScheduleTime:       c.ScheduleTime,
		PollInterval:       c.PollInterval,
		OutputDir:          c.OutputDir,
		RunLogPath:         c.RunLog,
		SMTP: reportship.SMTPConfig{
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			From:     c.SMTP.From,
		},
	}, nil
}

// request returns nil when no aggregation is configured.
func (a AggregateConfig) request() (*aggregate.Request, error) {
	if len(a.GroupKeys) == 0 && len(a.Measures) == 0 {
		return nil, nil
	}

	stats := make([]aggregate.Statistic, 0, len(a.Statistics))
	for _, name := range a.Statistics {
		st, err := aggregate.ParseStatistic(name)
		if err != nil {
			return nil, fmt.Errorf("%w: aggregate.statistics: %v", domain.ErrInvalidConfig, err)
		}
		stats = append(stats, st)
	}
	if len(stats) == 0 {
		stats = []aggregate.Statistic{aggregate.Mean}
	}

	fill, err := parseFill(a.Fill)
	if err != nil {
		return nil, err
	}

	req := &aggregate.Request{
		GroupKeys:  a.GroupKeys,
		SplitKey:   a.SplitKey,
		Measures:   a.Measures,
		Statistics: stats,
		Fill:       fill,
		Cartesian:  a.Cartesian,
		Margins:    a.Margins,
	}
	if a.TotalName != "" && len(a.Measures) > 0 {
		req.Total = &aggregate.Total{
			Name:      a.TotalName,
			Statistic: stats[0],
			Measure:   a.Measures[0],
			Sort:      a.SortTotal,
		}
	}
	return req, nil
}

func parseFill(s string) (aggregate.FillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return aggregate.FillPolicy{}, nil
	case "missing":
		return aggregate.FillPolicy{Mode: aggregate.FillMissing}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return aggregate.FillPolicy{}, fmt.Errorf("%w: aggregate.fill %q", domain.ErrInvalidConfig, s)
	}
	return aggregate.FillPolicy{Mode: aggregate.FillValue, Value: v}, nil
}

func renderSpecs(entries []RenderConfig) ([]render.Spec, error) {
	specs := make([]render.Spec, 0, len(entries))
	for i, e := range entries {
		kind := render.Kind(strings.ToLower(e.Kind))
		switch kind {
		case render.KindCSV, render.KindXLSX, render.KindPie, render.KindBar,
			render.KindCount, render.KindBox, render.KindLine, render.KindHeatmap:
		default:
			return nil, fmt.Errorf("%w: render[%d] has unknown kind %q", domain.ErrInvalidConfig, i, e.Kind)
		}
		specs = append(specs, render.Spec{
			Name:    e.Name,
			Kind:    kind,
			Columns: e.Columns,
			Title:   e.Title,
			Source:  render.Source(strings.ToLower(e.Source)),
		})
	}
	return specs, nil
}
