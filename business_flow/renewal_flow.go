package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/dto"
	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Renewal skip reasons
const (
	ReasonNoUnitsAvailable  = "no_units_available"
	ReasonDeliveryFailed    = "delivery_failed"
	ReasonNoIntegration     = "no_integration"
	ReasonAmbiguousProvider = "ambiguous_provider"
)

// Dispatch outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Panel call stages reported in failure details
const (
	StageRegistry     = "registry"
	StageCredentials  = "credentials"
	StageAuthenticate = "authenticate"
	StageFindTarget   = "find_target"
	StageRenew        = "renew"
	StageReserve      = "reserve"
	StageConfirm      = "confirm"
)

const inventoryMessage = "Hi %s, your activation code is: %s"

// RenewalFlow routes a confirmed renewal to the client's provider integration
type RenewalFlow interface {
	Dispatch(ctx context.Context, req *dto.RenewalRequest) (*dto.RenewalResult, error)
}

// RenewalFlowConfig holds dispatch timing
type RenewalFlowConfig struct {
	DeliveryRetries  int
	RetryDelay       time.Duration
	ReservationTTL   time.Duration
	TransportTimeout time.Duration
	ProviderTimeout  time.Duration
}

// RenewalFlowImpl implements RenewalFlow
type RenewalFlowImpl struct {
	clientRepo      repository.ClientRepository
	sessionRepo     repository.TransportSessionRepository
	inventoryRepo   repository.InventoryUnitRepository
	accountRepo     repository.ProviderAccountRepository
	deliveryLogRepo repository.DeliveryLogRepository
	transport       services.ChatTransport
	registry        *services.ProviderRegistry
	vault           services.CredentialVault
	events          services.EventSink
	logger          *zap.Logger
	cfg             RenewalFlowConfig

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRenewalFlow(
	clientRepo repository.ClientRepository,
	sessionRepo repository.TransportSessionRepository,
	inventoryRepo repository.InventoryUnitRepository,
	accountRepo repository.ProviderAccountRepository,
	deliveryLogRepo repository.DeliveryLogRepository,
	transport services.ChatTransport,
	registry *services.ProviderRegistry,
	vault services.CredentialVault,
	events services.EventSink,
	logger *zap.Logger,
	cfg RenewalFlowConfig,
) RenewalFlow {
	if cfg.DeliveryRetries <= 0 {
		cfg.DeliveryRetries = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 5 * time.Minute
	}
	if cfg.TransportTimeout <= 0 {
		cfg.TransportTimeout = 30 * time.Second
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 60 * time.Second
	}
	return &RenewalFlowImpl{
		clientRepo:      clientRepo,
		sessionRepo:     sessionRepo,
		inventoryRepo:   inventoryRepo,
		accountRepo:     accountRepo,
		deliveryLogRepo: deliveryLogRepo,
		transport:       transport,
		registry:        registry,
		vault:           vault,
		events:          events,
		logger:          logger.Named("renewal"),
		cfg:             cfg,
		clock:           utils.UTCNow,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// renewalSnapshot is the request merged over the stored client
type renewalSnapshot struct {
	TenantID      uint
	ClientID      uint
	ClientName    string
	Destination   string
	Target        models.ProviderTarget
	DurationUnits int
}

func newRenewalSnapshot(req *dto.RenewalRequest, client *models.Client) renewalSnapshot {
	s := renewalSnapshot{
		TenantID:      client.TenantID,
		ClientID:      client.ID,
		ClientName:    firstNonEmpty(req.ClientName, client.Name),
		Destination:   firstNonEmpty(req.Destination, client.ChatAddress),
		Target:        client.ProviderTarget(),
		DurationUnits: req.DurationUnits,
	}
	s.Target.Domain = firstNonEmpty(req.Domain, s.Target.Domain)
	s.Target.ExternalUsername = firstNonEmpty(req.ExternalUsername, s.Target.ExternalUsername)
	s.Target.PlanCode = firstNonEmpty(req.PlanCode, s.Target.PlanCode)
	if s.DurationUnits <= 0 {
		s.DurationUnits = client.DurationUnits
	}
	if s.DurationUnits <= 0 {
		s.DurationUnits = 1
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolveRenewalKind prefers explicit request flags, then an explicit kind, then the stored client kind
func resolveRenewalKind(req *dto.RenewalRequest, client *models.Client) (models.ProviderKind, error) {
	if req.Flags != (models.ProviderFlags{}) {
		return models.ResolveProviderKind(req.Flags)
	}
	raw := req.ProviderKind
	if raw == "" {
		raw = string(client.ProviderKind)
	}
	kind, err := models.ParseProviderKind(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownProviderKind, err)
	}
	return kind, nil
}

func (f *RenewalFlowImpl) Dispatch(ctx context.Context, req *dto.RenewalRequest) (*dto.RenewalResult, error) {
	if req == nil || req.TenantID == 0 || req.ClientID == 0 {
		return nil, NewBusinessError("INVALID_RENEWAL_REQUEST", "tenant_id and client_id are required", ErrInvalidRenewalRequest)
	}

	client, err := f.clientRepo.ByTenantAndID(ctx, req.TenantID, req.ClientID)
	if err != nil {
		return nil, NewBusinessError("CLIENT_LOOKUP_FAILED", "failed to load client", err)
	}
	if client == nil {
		return nil, NewBusinessError("CLIENT_NOT_FOUND", "client not found", ErrClientNotFound)
	}

	dispatchID := uuid.NewString()
	snap := newRenewalSnapshot(req, client)

	var result *dto.RenewalResult
	kind, err := resolveRenewalKind(req, client)
	switch {
	case errors.Is(err, models.ErrAmbiguousProvider):
		result = skippedResult(ReasonAmbiguousProvider, nil, map[string]any{"error": err.Error()})
	case err != nil:
		return nil, NewBusinessError("UNKNOWN_PROVIDER_KIND", "unknown provider kind", err)
	default:
		result = f.route(ctx, dispatchID, kind, snap)
	}
	result.DispatchID = dispatchID

	f.record(ctx, dispatchID, kind, snap, result)
	return result, nil
}

// route applies the fixed precedence: inventory, no integration, required fields, adapter call
func (f *RenewalFlowImpl) route(ctx context.Context, dispatchID string, kind models.ProviderKind, snap renewalSnapshot) (result *dto.RenewalResult) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("dispatch panicked", zap.String("dispatch_id", dispatchID), zap.Any("panic", r))
			result = failedResult(kind, "dispatch", fmt.Errorf("panic: %v", r))
		}
	}()

	switch {
	case kind == models.ProviderKindCodeInventory:
		return f.dispatchInventory(ctx, dispatchID, snap)
	case kind == models.ProviderKindNone:
		return skippedResult(ReasonNoIntegration, nil, map[string]any{})
	}

	if missing := snap.Target.MissingFields(kind); len(missing) > 0 {
		return skippedResult(kind.IncompleteReason(), providerName(kind), map[string]any{"missing": missing})
	}
	return f.dispatchPanel(ctx, kind, snap)
}

func (f *RenewalFlowImpl) dispatchInventory(ctx context.Context, dispatchID string, snap renewalSnapshot) *dto.RenewalResult {
	kind := models.ProviderKindCodeInventory
	product := snap.Target.PlanCode
	if product == "" {
		return skippedResult(kind.IncompleteReason(), providerName(kind), map[string]any{"missing": []string{models.ProviderFieldPlanCode}})
	}

	// the unit must be settled even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	now := f.clock()
	token := uuid.NewString()
	unit, err := f.inventoryRepo.Reserve(ctx, snap.TenantID, product, token, now, now.Add(f.cfg.ReservationTTL))
	if err != nil {
		return failedResult(kind, StageReserve, err)
	}
	if unit == nil {
		return skippedResult(ReasonNoUnitsAvailable, providerName(kind), map[string]any{"product_code": product})
	}

	masked := models.MaskInventoryCode(unit.Code)
	detail := map[string]any{"unit_id": unit.ID, "code_masked": masked}

	attempts, sendErr := f.deliverCode(ctx, snap, models.FormatInventoryCode(unit.Code))
	detail["attempts"] = attempts
	if sendErr != nil {
		if err := f.inventoryRepo.Release(ctx, unit.ID, token); err != nil {
			f.logger.Warn("failed to release inventory lease",
				zap.String("dispatch_id", dispatchID),
				zap.Uint("unit_id", unit.ID),
				zap.Error(err),
			)
		}
		f.auditInventory(ctx, dispatchID, snap, unit, masked, models.DeliveryStatusFailed, attempts, sendErr)
		detail["error"] = sendErr.Error()
		res := skippedResult(ReasonDeliveryFailed, providerName(kind), detail)
		res.Error = sendErr.Error()
		return res
	}

	if err := f.confirmUnit(ctx, unit.ID, snap.ClientID); err != nil {
		f.logger.Error("code sent but unit not confirmed",
			zap.String("dispatch_id", dispatchID),
			zap.Uint("unit_id", unit.ID),
			zap.Uint("client_id", snap.ClientID),
			zap.Error(err),
		)
		res := failedResult(kind, StageConfirm, err)
		res.Detail["unit_id"] = unit.ID
		// the code reached the client, so it must never be leased to anyone else
		if holdErr := f.inventoryRepo.Hold(ctx, unit.ID, token, snap.ClientID, f.clock()); holdErr != nil {
			f.logger.Error("failed to hold unconfirmed inventory unit",
				zap.String("dispatch_id", dispatchID),
				zap.Uint("unit_id", unit.ID),
				zap.Error(holdErr),
			)
		} else {
			res.Detail["held"] = true
		}
		return res
	}
	f.auditInventory(ctx, dispatchID, snap, unit, masked, models.DeliveryStatusSent, attempts, nil)
	return successResult(kind, detail)
}

// confirmUnit retries ConfirmDelivered with the delivery retry budget; another client's claim is final
func (f *RenewalFlowImpl) confirmUnit(ctx context.Context, unitID, clientID uint) error {
	var err error
	for attempt := 1; attempt <= f.cfg.DeliveryRetries; attempt++ {
		err = f.inventoryRepo.ConfirmDelivered(ctx, unitID, clientID, f.clock())
		if err == nil || errors.Is(err, repository.ErrUnitAlreadyDelivered) {
			return err
		}
		if attempt < f.cfg.DeliveryRetries {
			if sleepErr := f.sleep(ctx, f.cfg.RetryDelay); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

// deliverCode sends the code with bounded retries and returns the number of attempts made
func (f *RenewalFlowImpl) deliverCode(ctx context.Context, snap renewalSnapshot, code string) (int, error) {
	session, err := f.sessionRepo.ConnectedByTenant(ctx, snap.TenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve transport session: %w", err)
	}
	if session == nil {
		return 0, errors.New("no connected transport session")
	}
	if snap.Destination == "" {
		return 0, errors.New("client has no chat address")
	}

	text := fmt.Sprintf(inventoryMessage, snap.ClientName, code)
	var lastErr error
	for attempt := 1; attempt <= f.cfg.DeliveryRetries; attempt++ {
		lastErr = f.sendOnce(ctx, session.SessionName, snap.Destination, text)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt < f.cfg.DeliveryRetries {
			if err := f.sleep(ctx, f.cfg.RetryDelay); err != nil {
				return attempt, lastErr
			}
		}
	}
	return f.cfg.DeliveryRetries, lastErr
}

func (f *RenewalFlowImpl) sendOnce(ctx context.Context, sessionName, to, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during send: %v", r)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, f.cfg.TransportTimeout)
	defer cancel()
	return f.transport.SendText(sendCtx, sessionName, to, text)
}

func (f *RenewalFlowImpl) auditInventory(ctx context.Context, dispatchID string, snap renewalSnapshot, unit *models.InventoryUnit, masked, status string, attempts int, sendErr error) {
	entry := &models.DeliveryLog{
		TenantID:    snap.TenantID,
		Kind:        models.DeliveryKindInventory,
		ClientID:    snap.ClientID,
		Destination: snap.Destination,
		Status:      status,
		Attempts:    attempts,
		Meta: datatypes.JSONMap{
			"dispatch_id":  dispatchID,
			"unit_id":      unit.ID,
			"product_code": unit.ProductCode,
			"code_masked":  masked,
		},
		CreatedAt: f.clock(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Error = &msg
	}
	if err := f.deliveryLogRepo.Save(ctx, entry); err != nil {
		f.logger.Warn("failed to write inventory delivery log", zap.String("dispatch_id", dispatchID), zap.Error(err))
	}
}

func (f *RenewalFlowImpl) dispatchPanel(ctx context.Context, kind models.ProviderKind, snap renewalSnapshot) (result *dto.RenewalResult) {
	stage := StageRegistry
	defer func() {
		if r := recover(); r != nil {
			result = failedResult(kind, stage, fmt.Errorf("panic: %v", r))
		}
	}()

	adapter, ok := f.registry.Get(kind)
	if !ok {
		return failedResult(kind, stage, ErrProviderNotRegistered)
	}

	stage = StageCredentials
	creds, err := f.credentials(ctx, kind, snap)
	if err != nil {
		return failedResult(kind, stage, err)
	}

	stage = StageAuthenticate
	session, err := withTimeout(ctx, f.cfg.ProviderTimeout, func(c context.Context) (*services.ProviderSession, error) {
		return adapter.Authenticate(c, creds)
	})
	if err != nil {
		return failedResult(kind, stage, err)
	}

	stage = StageFindTarget
	target, err := withTimeout(ctx, f.cfg.ProviderTimeout, func(c context.Context) (*services.ProviderTarget, error) {
		return adapter.FindTarget(c, session, services.TargetQuery{ProviderTarget: snap.Target})
	})
	if err != nil {
		return failedResult(kind, stage, err)
	}

	stage = StageRenew
	outcome, err := withTimeout(ctx, f.cfg.ProviderTimeout, func(c context.Context) (*services.RenewOutcome, error) {
		return adapter.Renew(c, session, target, snap.DurationUnits)
	})
	if err == nil && (outcome == nil || !outcome.Success) {
		err = services.ErrProviderRenewFailed
	}
	if err != nil {
		return failedResult(kind, stage, err)
	}

	detail := map[string]any{"target_id": target.ID, "duration_units": snap.DurationUnits}
	if outcome.NewExpiry != nil {
		detail["new_expiry"] = outcome.NewExpiry.UTC().Format(time.RFC3339)
	}
	return successResult(kind, detail)
}

func (f *RenewalFlowImpl) credentials(ctx context.Context, kind models.ProviderKind, snap renewalSnapshot) (services.ProviderCredentials, error) {
	account, err := f.accountRepo.ByTenantAndKind(ctx, snap.TenantID, kind)
	if err != nil {
		return services.ProviderCredentials{}, err
	}
	if account == nil {
		return services.ProviderCredentials{}, ErrProviderAccountNotSet
	}
	password, err := f.vault.Open(account.SecretSealed)
	if err != nil {
		return services.ProviderCredentials{}, err
	}

	base := snap.Target.Domain
	if account.BaseURL != nil && *account.BaseURL != "" {
		base = *account.BaseURL
	}
	return services.ProviderCredentials{
		Username: account.Username,
		Password: password,
		BaseURL:  base,
		Settings: account.Settings,
	}, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(c)
}

func (f *RenewalFlowImpl) record(ctx context.Context, dispatchID string, kind models.ProviderKind, snap renewalSnapshot, result *dto.RenewalResult) {
	outcome := OutcomeSuccess
	switch {
	case result.Skipped:
		outcome = OutcomeSkipped
	case !result.Success:
		outcome = OutcomeFailed
	}
	provider := string(kind)
	if provider == "" {
		provider = "unknown"
	}
	var reason string
	if result.Reason != nil {
		reason = *result.Reason
	}
	renewalDispatchTotal.WithLabelValues(provider, outcome).Inc()

	fields := []zap.Field{
		zap.String("dispatch_id", dispatchID),
		zap.String("request_id", utils.RequestIDFrom(ctx)),
		zap.Uint("tenant_id", snap.TenantID),
		zap.Uint("client_id", snap.ClientID),
		zap.String("provider", provider),
		zap.String("outcome", outcome),
		zap.String("reason", reason),
	}
	if outcome == OutcomeFailed {
		f.logger.Warn("renewal dispatch failed", append(fields, zap.String("error", result.Error))...)
	} else {
		f.logger.Info("renewal dispatched", fields...)
	}

	f.events.Emit(ctx, services.Event{
		Kind:       services.EventRenewalDispatched,
		At:         f.clock(),
		DispatchID: dispatchID,
		TenantID:   snap.TenantID,
		ClientID:   snap.ClientID,
		Provider:   provider,
		Outcome:    outcome,
		Reason:     reason,
		Error:      result.Error,
	})
}

func providerName(kind models.ProviderKind) *string {
	return utils.ToPtr(string(kind))
}

func skippedResult(reason string, provider *string, detail map[string]any) *dto.RenewalResult {
	if detail == nil {
		detail = map[string]any{}
	}
	return &dto.RenewalResult{Skipped: true, Reason: utils.ToPtr(reason), Provider: provider, Detail: detail}
}

func successResult(kind models.ProviderKind, detail map[string]any) *dto.RenewalResult {
	return &dto.RenewalResult{Success: true, Provider: providerName(kind), Detail: detail}
}

func failedResult(kind models.ProviderKind, stage string, err error) *dto.RenewalResult {
	return &dto.RenewalResult{
		Provider: providerName(kind),
		Detail:   map[string]any{"error": err.Error(), "stage": stage},
		Error:    err.Error(),
	}
}
