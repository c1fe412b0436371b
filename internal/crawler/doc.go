// Package crawler walks the content of Canvas courses and queues the files
// that need downloading.
//
// # Architecture
//
// A Crawler is the explicit context shared by every crawl task: the API
// client, the scheduler that runs tasks, the download queue, the selector
// that compares remote and local state, and the layout that writes
// metadata. Each content type has an expander that fetches one resource,
// writes its JSON next to the mirrored files, and schedules further
// expanders for what it references.
//
//	course ─┬─ folders ─┬─ files
//	        │           └─ folders ...
//	        ├─ assignments ─┬─ submission
//	        │               └─ html links
//	        ├─ users
//	        ├─ discussions / announcements ─┬─ view ── html links
//	        │                               └─ html links
//	        ├─ pages ── page body ── html links
//	        ├─ modules ── module items ─┬─ file
//	        │                           └─ page body
//	        └─ syllabus
//
// Every expander holds one scheduler permit while it runs, so the number of
// concurrent Canvas requests never exceeds the permit count.
//
// # Usage
//
//	user, courses, err := crawler.Discover(ctx, client, canvasURL)
//	c := crawler.New(client, sched, canvasURL, crawler.WithUser(user))
//	release := sched.Fence()
//	for _, course := range selected {
//	    c.ProcessCourse(ctx, course, dest)
//	}
//	release()
//	_ = sched.Wait(ctx)
//	files := c.Queue().Snapshot()
package crawler
