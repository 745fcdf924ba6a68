package client

import (
	"fmt"
	"strings"
)

// UnknownStatusError is returned when the API reports a status this client
// does not know. Decoding fails instead of guessing.
type UnknownStatusError struct {
	Kind  string
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown %s status %q", e.Kind, e.Value)
}

func decodeStatus[T ~string](kind string, text []byte, dst *T, allowed []T) error {
	v := T(strings.TrimSpace(string(text)))
	for _, a := range allowed {
		if a == v {
			*dst = v
			return nil
		}
	}
	return &UnknownStatusError{Kind: kind, Value: string(text)}
}

// DeploymentStatus is the pipeline state of a deployment.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentRunning    DeploymentStatus = "running"
	DeploymentDeploying  DeploymentStatus = "deploying"
	DeploymentBuilt      DeploymentStatus = "built"
	DeploymentReady      DeploymentStatus = "ready"
	DeploymentDeployed   DeploymentStatus = "deployed"
	DeploymentCompleted  DeploymentStatus = "completed"
	DeploymentFailed     DeploymentStatus = "failed"
	DeploymentCancelled  DeploymentStatus = "cancelled"
	DeploymentPaused     DeploymentStatus = "paused"
	DeploymentStopped    DeploymentStatus = "stopped"
)

var deploymentStatuses = []DeploymentStatus{
	DeploymentPending, DeploymentInProgress, DeploymentRunning, DeploymentDeploying, DeploymentBuilt,
	DeploymentReady, DeploymentDeployed, DeploymentCompleted, DeploymentFailed, DeploymentCancelled,
	DeploymentPaused, DeploymentStopped,
}

func (s *DeploymentStatus) UnmarshalText(text []byte) error {
	return decodeStatus("deployment", text, s, deploymentStatuses)
}

// Terminal reports whether the pipeline will not change state on its own.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case DeploymentCompleted, DeploymentDeployed, DeploymentFailed, DeploymentCancelled,
		DeploymentPaused, DeploymentStopped:
		return true
	case DeploymentPending, DeploymentInProgress, DeploymentRunning, DeploymentDeploying,
		DeploymentBuilt, DeploymentReady:
		return false
	}
	return false
}

// Succeeded reports whether the deployment finished successfully.
func (s DeploymentStatus) Succeeded() bool {
	return s == DeploymentCompleted || s == DeploymentDeployed
}

// Failed reports whether the deployment ended without going live.
func (s DeploymentStatus) Failed() bool {
	return s == DeploymentFailed || s == DeploymentCancelled
}

// JobStatus is the state of a single deployment job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobWaiting   JobStatus = "waiting"
	JobRunning   JobStatus = "running"
	JobSuccess   JobStatus = "success"
	JobFailure   JobStatus = "failure"
	JobCancelled JobStatus = "cancelled"
	JobSkipped   JobStatus = "skipped"
)

var jobStatuses = []JobStatus{JobPending, JobWaiting, JobRunning, JobSuccess, JobFailure, JobCancelled, JobSkipped}

func (s *JobStatus) UnmarshalText(text []byte) error {
	return decodeStatus("job", text, s, jobStatuses)
}

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSuccess, JobFailure, JobCancelled, JobSkipped:
		return true
	case JobPending, JobWaiting, JobRunning:
		return false
	}
	return false
}

// DomainStatus is the certificate lifecycle state of a domain.
type DomainStatus string

const (
	DomainPending            DomainStatus = "pending"
	DomainChallengeRequested DomainStatus = "challenge_requested"
	DomainPendingDNS         DomainStatus = "pending_dns"
	DomainPendingHTTP        DomainStatus = "pending_http"
	DomainPendingValidation  DomainStatus = "pending_validation"
	DomainActive             DomainStatus = "active"
	DomainFailed             DomainStatus = "failed"
	DomainExpired            DomainStatus = "expired"
)

var domainStatuses = []DomainStatus{
	DomainPending, DomainChallengeRequested, DomainPendingDNS, DomainPendingHTTP,
	DomainPendingValidation, DomainActive, DomainFailed, DomainExpired,
}

func (s *DomainStatus) UnmarshalText(text []byte) error {
	return decodeStatus("domain", text, s, domainStatuses)
}

// Terminal reports whether the domain left the verification pipeline.
func (s DomainStatus) Terminal() bool {
	switch s {
	case DomainActive, DomainFailed, DomainExpired:
		return true
	case DomainPending, DomainChallengeRequested, DomainPendingDNS, DomainPendingHTTP, DomainPendingValidation:
		return false
	}
	return false
}

// Failed reports whether the domain has no usable certificate.
func (s DomainStatus) Failed() bool {
	return s == DomainFailed || s == DomainExpired
}

// OrderStatus is the state of an ACME order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderReady      OrderStatus = "ready"
	OrderProcessing OrderStatus = "processing"
	OrderValid      OrderStatus = "valid"
	OrderInvalid    OrderStatus = "invalid"
)

var orderStatuses = []OrderStatus{OrderPending, OrderReady, OrderProcessing, OrderValid, OrderInvalid}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	return decodeStatus("acme order", text, s, orderStatuses)
}

// Terminal reports whether the order is finished either way.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderValid, OrderInvalid:
		return true
	case OrderPending, OrderReady, OrderProcessing:
		return false
	}
	return false
}

// EmailDomainStatus is the DNS verification state of a sending domain.
type EmailDomainStatus string

const (
	EmailDomainNotStarted       EmailDomainStatus = "not_started"
	EmailDomainPending          EmailDomainStatus = "pending"
	EmailDomainVerified         EmailDomainStatus = "verified"
	EmailDomainFailed           EmailDomainStatus = "failed"
	EmailDomainTemporaryFailure EmailDomainStatus = "temporary_failure"
)

var emailDomainStatuses = []EmailDomainStatus{
	EmailDomainNotStarted, EmailDomainPending, EmailDomainVerified, EmailDomainFailed, EmailDomainTemporaryFailure,
}

func (s *EmailDomainStatus) UnmarshalText(text []byte) error {
	return decodeStatus("email domain", text, s, emailDomainStatuses)
}

// Terminal reports whether verification has concluded.
func (s EmailDomainStatus) Terminal() bool {
	switch s {
	case EmailDomainVerified, EmailDomainFailed, EmailDomainTemporaryFailure:
		return true
	case EmailDomainNotStarted, EmailDomainPending:
		return false
	}
	return false
}

// Failed reports whether the provider rejected the DNS records. A
// temporary failure ends this check too; run verify again later.
func (s EmailDomainStatus) Failed() bool {
	return s == EmailDomainFailed || s == EmailDomainTemporaryFailure
}

// ServiceStatus is the runtime state of an external service.
type ServiceStatus string

const (
	ServicePending ServiceStatus = "pending"
	ServiceRunning ServiceStatus = "running"
	ServiceStopped ServiceStatus = "stopped"
	ServiceFailed  ServiceStatus = "failed"
)

var serviceStatuses = []ServiceStatus{ServicePending, ServiceRunning, ServiceStopped, ServiceFailed}

func (s *ServiceStatus) UnmarshalText(text []byte) error {
	return decodeStatus("service", text, s, serviceStatuses)
}

// Terminal reports whether the service settled.
func (s ServiceStatus) Terminal() bool {
	switch s {
	case ServiceRunning, ServiceStopped, ServiceFailed:
		return true
	case ServicePending:
		return false
	}
	return false
}

// Failed reports whether the service crashed or could not be provisioned.
func (s ServiceStatus) Failed() bool { return s == ServiceFailed }

// ServiceType names an external service engine.
type ServiceType string

const (
	ServiceMongoDB  ServiceType = "mongodb"
	ServicePostgres ServiceType = "postgres"
	ServiceRedis    ServiceType = "redis"
	ServiceS3       ServiceType = "s3"
	ServiceKV       ServiceType = "kv"
	ServiceBlob     ServiceType = "blob"
)

// ServiceTypes lists every engine the API can provision.
var ServiceTypes = []ServiceType{ServiceMongoDB, ServicePostgres, ServiceRedis, ServiceS3, ServiceKV, ServiceBlob}

func (s *ServiceType) UnmarshalText(text []byte) error {
	return decodeStatus("service type", text, s, ServiceTypes)
}

// ParseServiceType validates user input against ServiceTypes.
func ParseServiceType(v string) (ServiceType, error) {
	var t ServiceType
	if err := t.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(v)))); err != nil {
		return "", err
	}
	return t, nil
}

// BackupState is the state of a backup run.
type BackupState string

const (
	BackupPending   BackupState = "pending"
	BackupRunning   BackupState = "running"
	BackupCompleted BackupState = "completed"
	BackupFailed    BackupState = "failed"
)

var backupStates = []BackupState{BackupPending, BackupRunning, BackupCompleted, BackupFailed}

func (s *BackupState) UnmarshalText(text []byte) error {
	return decodeStatus("backup", text, s, backupStates)
}

// Terminal reports whether the backup run finished.
func (s BackupState) Terminal() bool {
	switch s {
	case BackupCompleted, BackupFailed:
		return true
	case BackupPending, BackupRunning:
		return false
	}
	return false
}

// Failed reports whether the backup run did not produce an archive.
func (s BackupState) Failed() bool { return s == BackupFailed }
