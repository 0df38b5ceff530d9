package extract

const activityHTML = `<html><body><main>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:7001">
  <div class="update-components-text"><span dir="ltr">Shipping the new   ingestion pipeline today.
  Thanks to everyone involved!</span></div>
  <time datetime="2026-02-27T09:30:00Z">2d</time>
  <a href="/feed/update/urn:li:activity:7001/?trk=public">permalink</a>
  <button aria-label="1,204 reactions">1,204</button>
  <button aria-label="37 comments on this post">37 comments</button>
  <img src="https://media.x.test/image/abc.jpg"/>
</div>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:7002">
  <div class="feed-shared-text">Hiring two backend engineers in Lisbon.</div>
  <span class="social-details-social-counts__reactions-count">58</span>
  <video poster="https://media.x.test/poster.jpg"></video>
</div>
<div class="feed-shared-update-v2">
  <div class="update-components-text">too short</div>
  <a href="/feed/update/urn:li:activity:7003/">permalink</a>
</div>
<div class="feed-shared-update-v2">
  <div class="update-components-text">A post with text but nothing to identify it by.</div>
</div>
<div class="feed-shared-update-v2">
  <div class="update-components-text">Reposted: Shipping the new ingestion pipeline today.</div>
  <a href="https://x.test/feed/update/urn:li:activity:7001/#comments">permalink</a>
</div>
<div class="feed-shared-update-v2">
  <div class="update-components-text">Conference recap with slides from the keynote.</div>
  <time datetime="not a date at all">last week</time>
  <a href="https://x.test/posts/acme_conference-activity-7004-abcd?utm=1">activity</a>
  <button aria-label="Like">Like</button>
</div>
</main></body></html>`
