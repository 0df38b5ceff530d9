// Package ratelimit paces calls to rate-sensitive collaborators such as the post store.
//
// Pacer wraps golang.org/x/time/rate with a burst of one, so consecutive calls are spaced
// at least the configured interval apart while the first call proceeds immediately:
//
//	pacer := ratelimit.NewPacer(cfg.Crawl.WriteDelay)
//	for _, post := range posts {
//	    if err := pacer.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // write post
//	}
package ratelimit
