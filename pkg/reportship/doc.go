// Package reportship provides an embeddable daily report pipeline.
//
// Every day at a configured time reportship loads a CSV or xlsx source,
// normalizes it, computes a pivoted aggregate, renders exports and charts,
// writes them to an output directory and mails them to a recipient list.
// It can be used as the reportship CLI or embedded as a library.
//
// # Basic Usage
//
//	cfg := reportship.Config{
//	    Source:       "online_shoppers_intention.csv",
//	    ScheduleTime: "09:00",
//	    Aggregate: &reportship.AggregateRequest{
//	        GroupKeys:  []string{"VisitorType"},
//	        SplitKey:   "Weekend",
//	        Measures:   []string{"PageValues"},
//	        Statistics: []reportship.Statistic{"mean"},
//	    },
//	    Render: []reportship.RenderSpec{
//	        {Name: "pivot", Kind: "csv"},
//	        {Name: "visitor_types", Kind: "pie", Columns: []string{"VisitorType"}},
//	    },
//	    Recipients: reportship.RecipientsFromFile{Path: "email_list.xlsx"},
//	    SMTP: reportship.SMTPConfig{Host: "smtp.gmail.com", Port: 465, Username: "me@example.com"},
//	}
//
//	r, err := reportship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
// # Runs
//
// Runs never overlap. [Reportship.TriggerNow] runs immediately and shares the
// scheduler's guard, so it returns [ErrAlreadyRunning] while a run is active.
// Each run produces one [RunRecord], appended to the run log and passed to
// [EventHandler.OnRunComplete].
//
// # Dependency Injection
//
// The mail transport, chart backend, artifact store and run log can be
// replaced for testing:
//
//	r, err := reportship.New(cfg,
//	    reportship.WithMailSender(fakeSender),
//	    reportship.WithLogger(customLogger),
//	)
//
// # Lifecycle States
//
// An instance is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Reportship.Status]
// to query it.
//
// # Plugins
//
// Optional behavior is added with plugins:
//
//	import "github.com/bft-labs/reportship/plugins/configwatcher"
//
//	r, err := reportship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: "config.toml"}),
//	)
package reportship
