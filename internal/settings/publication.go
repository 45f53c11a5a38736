package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/utils"
)

// MaxPublicationID bounds the stored sales channel id.
const MaxPublicationID = 200

var validate = validator.New()

// ErrInvalid marks a rejected setting value.
var ErrInvalid = errors.New("invalid setting")

// PublicationSettings owns the marketplace publication id, the sales channel
// approved products are published to.
type PublicationSettings struct {
	Store    *Store
	Cell     *Cell[*string]
	Notifier Notifier
	Logger   *logger.Logger
	Now      utils.Clock
}

func NewPublicationSettings(store *Store, ttl time.Duration, notifier Notifier, log *logger.Logger) *PublicationSettings {
	p := &PublicationSettings{Store: store, Notifier: notifier, Logger: log, Now: utils.SystemClock}
	p.Cell = NewCell(func(ctx context.Context) (*string, error) {
		return store.Get(ctx, models.SettingPublicationID)
	}, ttl)
	return p
}

func (p *PublicationSettings) Get(ctx context.Context) (*string, error) {
	return p.Cell.Get(ctx)
}

// Set trims id and stores it; blank clears the setting.
func (p *PublicationSettings) Set(ctx context.Context, id *string, updatedBy string) (*string, error) {
	var value *string
	if id != nil {
		if trimmed := strings.TrimSpace(*id); trimmed != "" {
			if err := validate.Var(trimmed, fmt.Sprintf("max=%d", MaxPublicationID)); err != nil {
				return nil, fmt.Errorf("%w: publicationId is too long", ErrInvalid)
			}
			value = &trimmed
		}
	}

	if err := p.Store.Put(ctx, models.SettingPublicationID, value, updatedBy, p.Now()); err != nil {
		return nil, err
	}
	p.Cell.Set(value)
	p.Logger.Info("SETTINGS", fmt.Sprintf("%s set by %s", models.SettingPublicationID, updatedBy))

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, models.SettingPublicationID); err != nil {
			p.Logger.Warn("SETTINGS", fmt.Sprintf("Failed to announce %s change: %v", models.SettingPublicationID, err))
		}
	}
	return value, nil
}

// Invalidate drops the cached value when key refers to it.
func (p *PublicationSettings) Invalidate(key string) {
	if key == models.SettingPublicationID {
		p.Cell.Invalidate()
	}
}
