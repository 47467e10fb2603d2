// Package settings persists the user's model configurations and UI
// preferences through the key-value store, encrypting API keys at rest.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hoeteam/openchat/internal/models"
	"github.com/hoeteam/openchat/internal/secret"
	"github.com/hoeteam/openchat/internal/storage"
	"go.uber.org/zap"
)

const (
	keyModelsList     = "llm_models_list"
	keyCurrentModelID = "current_model_id"
	keyDarkTheme      = "dark_theme_enabled"
)

// Name suffixes surfaced when a stored API key cannot be recovered. The
// configuration stays in the list so the user can re-enter the key.
const (
	suffixDecryptionFailed = " (Key Decryption Failed)"
	suffixStorageInvalid   = " (Key Storage Invalid)"
)

type Repository struct {
	store  storage.Store
	cipher *secret.Cipher
	logger *zap.Logger
}

func NewRepository(store storage.Store, cipher *secret.Cipher, logger *zap.Logger) *Repository {
	return &Repository{
		store:  store,
		cipher: cipher,
		logger: logger,
	}
}

// AllModels loads every stored configuration with its API key decrypted.
// Unrecoverable keys are surfaced as empty with a tagged name, never
// silently dropped.
func (r *Repository) AllModels(ctx context.Context) ([]models.ModelConfig, error) {
	jsonString, err := r.store.GetString(ctx, keyModelsList)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model list: %w", err)
	}

	var stored []models.ModelConfig
	if err := json.Unmarshal([]byte(jsonString), &stored); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	for i, model := range stored {
		if !secret.IsEncrypted(model.APIKey) {
			// A plaintext key in storage means the value was tampered with
			// or written by a broken build.
			stored[i].APIKey = ""
			stored[i].Name = model.Name + suffixStorageInvalid
			continue
		}
		plaintext, err := r.cipher.DecryptFromStorage(model.APIKey)
		if err != nil {
			r.logger.Warn("failed to decrypt stored API key",
				zap.String("model_id", model.ID),
				zap.Error(err))
			stored[i].APIKey = ""
			stored[i].Name = model.Name + suffixDecryptionFailed
			continue
		}
		stored[i].APIKey = plaintext
	}
	return stored, nil
}

// CurrentModel returns the selected configuration, falling back to the
// first one when the selected id is missing. Returns nil when the list is
// empty.
func (r *Repository) CurrentModel(ctx context.Context) (*models.ModelConfig, error) {
	all, err := r.AllModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	currentID, err := r.store.GetString(ctx, keyCurrentModelID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load current model id: %w", err)
	}
	for i := range all {
		if all[i].ID == currentID {
			return &all[i], nil
		}
	}
	return &all[0], nil
}

// SetCurrentModel selects the active configuration by id.
func (r *Repository) SetCurrentModel(ctx context.Context, modelID string) error {
	return r.store.SetString(ctx, keyCurrentModelID, modelID)
}

// AddOrUpdateModel inserts or replaces one configuration. The incoming
// APIKey must be plaintext; it is encrypted on save.
func (r *Repository) AddOrUpdateModel(ctx context.Context, newModel models.ModelConfig) error {
	current, err := r.AllModels(ctx)
	if err != nil {
		return err
	}

	updated := make([]models.ModelConfig, 0, len(current)+1)
	for _, model := range current {
		if model.ID != newModel.ID {
			updated = append(updated, model)
		}
	}
	updated = append(updated, newModel)
	return r.saveModels(ctx, updated)
}

// DeleteModel removes one configuration from the list.
func (r *Repository) DeleteModel(ctx context.Context, modelID string) error {
	current, err := r.AllModels(ctx)
	if err != nil {
		return err
	}

	updated := make([]models.ModelConfig, 0, len(current))
	for _, model := range current {
		if model.ID != modelID {
			updated = append(updated, model)
		}
	}
	return r.saveModels(ctx, updated)
}

// saveModels serializes and stores the whole list in one atomic write,
// encrypting any plaintext API keys.
func (r *Repository) saveModels(ctx context.Context, list []models.ModelConfig) error {
	toSave := make([]models.ModelConfig, len(list))
	for i, model := range list {
		if model.APIKey == "" || secret.IsEncrypted(model.APIKey) {
			toSave[i] = model
			continue
		}
		stored, err := r.cipher.EncryptToStorage(model.APIKey)
		if err != nil {
			// Persist the configuration without the key rather than losing it.
			r.logger.Error("failed to encrypt API key, storing without it",
				zap.String("model_id", model.ID),
				zap.Error(err))
			model.APIKey = ""
			toSave[i] = model
			continue
		}
		model.APIKey = stored
		toSave[i] = model
	}

	payload, err := json.Marshal(toSave)
	if err != nil {
		return fmt.Errorf("failed to serialize model list: %w", err)
	}
	return r.store.SetString(ctx, keyModelsList, string(payload))
}

// DarkTheme reports the persisted theme preference, defaulting to light.
func (r *Repository) DarkTheme(ctx context.Context) (bool, error) {
	dark, err := r.store.GetBool(ctx, keyDarkTheme)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return dark, err
}

// SetDarkTheme persists the theme preference.
func (r *Repository) SetDarkTheme(ctx context.Context, dark bool) error {
	return r.store.SetBool(ctx, keyDarkTheme, dark)
}
