package client

import (
	"time"

	"github.com/gotempsh/temps-cli/pkg/poll"
)

// ScreenshotInterval is the poll interval while a completed deployment is
// still waiting for its screenshot.
const ScreenshotInterval = 3 * time.Second

// DeploymentDecision classifies a deployment for poll.Run. With
// awaitScreenshot set, a completed deployment without a screenshot keeps
// polling at ScreenshotInterval.
func DeploymentDecision(awaitScreenshot bool) func(Deployment) poll.Decision {
	return func(d Deployment) poll.Decision {
		dec := poll.Decision{Status: string(d.Status), Stop: d.Status.Terminal(), Failed: d.Status.Failed()}
		if awaitScreenshot && d.Status.Succeeded() && !d.HasScreenshot() {
			dec.Stop = false
			dec.Interval = ScreenshotInterval
		}
		return dec
	}
}

// DomainDecision stops once the domain is active, failed or expired.
func DomainDecision(d Domain) poll.Decision {
	return poll.Decision{Status: string(d.Status), Stop: d.Status.Terminal(), Failed: d.Status.Failed()}
}

// OrderDecision stops once the order is valid or invalid.
func OrderDecision(o AcmeOrder) poll.Decision {
	return poll.Decision{Status: string(o.Status), Stop: o.Status.Terminal(), Failed: o.Status == OrderInvalid}
}

// EmailDomainDecision stops once verification concluded.
func EmailDomainDecision(d EmailDomain) poll.Decision {
	return poll.Decision{Status: string(d.Status), Stop: d.Status.Terminal(), Failed: d.Status.Failed()}
}

// BackupDecision stops once the backup completed or failed.
func BackupDecision(b Backup) poll.Decision {
	return poll.Decision{Status: string(b.State), Stop: b.State.Terminal(), Failed: b.State.Failed()}
}

// ServiceDecision stops once the service settled.
func ServiceDecision(s ServiceDetails) poll.Decision {
	return poll.Decision{Status: string(s.Service.Status), Stop: s.Service.Status.Terminal(), Failed: s.Service.Status.Failed()}
}
