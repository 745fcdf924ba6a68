package cli

import (
	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/verification"
)

func deploymentTone(s client.DeploymentStatus) ui.Tone {
	switch s {
	case client.DeploymentCompleted, client.DeploymentDeployed:
		return ui.ToneSuccess
	case client.DeploymentFailed, client.DeploymentCancelled:
		return ui.ToneDanger
	case client.DeploymentPaused, client.DeploymentStopped:
		return ui.ToneWarning
	case client.DeploymentPending, client.DeploymentInProgress, client.DeploymentRunning,
		client.DeploymentDeploying, client.DeploymentBuilt, client.DeploymentReady:
		return ui.ToneInfo
	}
	return ui.ToneNeutral
}

func jobTone(s client.JobStatus) ui.Tone {
	switch s {
	case client.JobSuccess:
		return ui.ToneSuccess
	case client.JobFailure:
		return ui.ToneDanger
	case client.JobCancelled, client.JobSkipped:
		return ui.ToneWarning
	case client.JobPending, client.JobWaiting, client.JobRunning:
		return ui.ToneInfo
	}
	return ui.ToneNeutral
}

func domainTone(s client.DomainStatus) ui.Tone {
	switch s {
	case client.DomainActive:
		return ui.ToneSuccess
	case client.DomainFailed, client.DomainExpired:
		return ui.ToneDanger
	case client.DomainPending, client.DomainChallengeRequested, client.DomainPendingDNS,
		client.DomainPendingHTTP, client.DomainPendingValidation:
		return ui.ToneWarning
	}
	return ui.ToneNeutral
}

func orderTone(s client.OrderStatus) ui.Tone {
	switch s {
	case client.OrderValid:
		return ui.ToneSuccess
	case client.OrderInvalid:
		return ui.ToneDanger
	case client.OrderPending, client.OrderReady, client.OrderProcessing:
		return ui.ToneWarning
	}
	return ui.ToneNeutral
}

func stageTone(s verification.Stage) ui.Tone {
	switch s {
	case verification.StageActive:
		return ui.ToneSuccess
	case verification.StageFailed:
		return ui.ToneDanger
	case verification.StageNoOrder, verification.StageOrderCreated:
		return ui.ToneNeutral
	case verification.StageChallengeReady, verification.StageVerifying:
		return ui.ToneWarning
	}
	return ui.ToneNeutral
}

func emailTone(s client.EmailDomainStatus) ui.Tone {
	switch s {
	case client.EmailDomainVerified:
		return ui.ToneSuccess
	case client.EmailDomainFailed, client.EmailDomainTemporaryFailure:
		return ui.ToneDanger
	case client.EmailDomainPending:
		return ui.ToneWarning
	case client.EmailDomainNotStarted:
		return ui.ToneNeutral
	}
	return ui.ToneNeutral
}

func serviceTone(s client.ServiceStatus) ui.Tone {
	switch s {
	case client.ServiceRunning:
		return ui.ToneSuccess
	case client.ServiceFailed:
		return ui.ToneDanger
	case client.ServiceStopped:
		return ui.ToneWarning
	case client.ServicePending:
		return ui.ToneInfo
	}
	return ui.ToneNeutral
}

func backupTone(s client.BackupState) ui.Tone {
	switch s {
	case client.BackupCompleted:
		return ui.ToneSuccess
	case client.BackupFailed:
		return ui.ToneDanger
	case client.BackupPending, client.BackupRunning:
		return ui.ToneInfo
	}
	return ui.ToneNeutral
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
