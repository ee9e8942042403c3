package app

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
)

// initKeys loads or generates the session signing keys. Retired keys keep
// verifying for one token TTL, long enough for every token they signed.
func (app *Application) initKeys(ctx context.Context) error {
	switch app.cfg.KeyStorage {
	case KeyStoragePersistent:
		sealer, err := cryptox.LoadKeyCipher(app.cfg.MasterKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load master key: %w", err)
		}

		km, stats, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:       store.NewKeyStoreAdapter(app.db),
			Sealer:      sealer,
			Issuer:      app.cfg.Issuer,
			NumKeys:     app.cfg.NumKeys,
			RotateAfter: app.cfg.KeyRotateAfter,
			GracePeriod: app.cfg.TokenTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize persistent signing keys: %w", err)
		}
		app.keyManager = km
		app.logger.Info("persistent signing keys ready",
			"active", km.NumSigners(),
			"loaded", stats.Loaded,
			"retired", stats.Retired,
			"generated", stats.Generated,
		)

	default:
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:  app.cfg.Issuer,
			NumKeys: app.cfg.NumKeys,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize signing keys: %w", err)
		}
		app.keyManager = km
		app.logger.Info("ephemeral signing keys generated; sessions end on restart", "active", km.NumSigners())
	}
	return nil
}
