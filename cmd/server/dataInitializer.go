package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jan-server/services/dispatch-api/internal/config"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/inference/adapters"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type DataInitializer struct {
	cfg         *config.Config
	registry    *adapters.Registry
	provisioner *provider.KeyProvisioner
	log         zerolog.Logger
}

func (d *DataInitializer) Install(ctx context.Context) error {
	entries := d.cfg.ProviderBootstrapEntries()
	if len(entries) == 0 {
		d.log.Info().Msg("no provider bootstrap entries configured")
		return nil
	}

	adapterCodes := make([]string, 0, len(entries))
	for _, entry := range entries {
		adapterCodes = append(adapterCodes, entry.Adapter)
	}
	if err := d.registry.Validate(adapterCodes...); err != nil {
		return err
	}

	for i := range entries {
		entry := entries[i]
		if err := d.bootstrapProvider(ctx, entry); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("failed to bootstrap provider %q", entry.Code))
		}
	}
	return nil
}

func (d *DataInitializer) bootstrapProvider(ctx context.Context, entry config.ProviderBootstrapEntry) error {
	p := &provider.Provider{
		Code:         entry.Code,
		DisplayName:  entry.DisplayName,
		Enabled:      entry.Enabled,
		Adapter:      entry.Adapter,
		Endpoint:     entry.Endpoint,
		DefaultModel: entry.DefaultModel,
		Config:       provider.Config(entry.Config),
	}
	if err := d.provisioner.EnsureProvider(ctx, p); err != nil {
		return err
	}

	added := 0
	for _, key := range entry.Keys {
		_, created, err := d.provisioner.AddKey(ctx, p.ID, provider.ProvisionKeyInput{
			Plaintext:  key.Key,
			Label:      key.Label,
			ModelID:    key.ModelID,
			DailyLimit: key.DailyLimit,
		})
		if err != nil {
			return err
		}
		if created {
			added++
		}
	}

	d.log.Info().
		Str("provider", p.Code).
		Int("keys_configured", len(entry.Keys)).
		Int("keys_added", added).
		Msg("provider bootstrapped")
	return nil
}
