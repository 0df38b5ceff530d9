// Package crawler runs the end-to-end crawl pipeline.
//
// A run fetches the Active sources, launches one browser context and
// authenticates it once, then visits every source in order:
//
//   - the extractor loads the source's recent-activity page and reads posts
//   - the persister writes only posts whose canonical URL is not yet stored
//
// Sources are crawled strictly one after another with a fixed pause between
// them. A failing source is recorded in the run summary and the run moves on;
// only an authentication failure or an unreadable source list ends a run
// early. The browser is closed on every path out of a run.
//
// Usage:
//
//	c, err := crawler.New(crawler.Deps{
//	    Config:   cfg,
//	    Sources:  st,
//	    Posts:    st,
//	    RunLogs:  []store.RunLog{st},
//	    Launcher: browser.NewChromeLauncher(cfg.Browser, cfg.Navigation.Timeout, log),
//	    Material: session.Material{Cookies: cfg.Session.Cookies},
//	    Logger:   log,
//	})
//	if err != nil {
//	    return err
//	}
//	summary, err := c.Run(ctx, crawler.TriggerManual)
package crawler
