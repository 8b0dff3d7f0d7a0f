// Package registry coordinates the card lifecycle: version resolution,
// atomic card+key persistence, and storage cleanup on delete.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/cryptox"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
	"github.com/dmitrijs2005/cardkeeper/internal/semver"
	"github.com/dmitrijs2005/cardkeeper/internal/sqlstore"
	"github.com/dmitrijs2005/cardkeeper/internal/storage"
)

// defaultFirstVersion is assigned to the first card of a lineage when the
// request does not carry an explicit version.
const defaultFirstVersion = "0.1.0"

// ServerCardRegistry serves one card kind. All registries of a server share
// the same store and filesystem; only the registry type differs.
type ServerCardRegistry struct {
	registryType models.RegistryType
	store        *sqlstore.Store
	fs           storage.FileSystem
	cfg          *config.Config
	log          logging.Logger
}

func NewServerCardRegistry(rt models.RegistryType, store *sqlstore.Store, fs storage.FileSystem, cfg *config.Config, log logging.Logger) (*ServerCardRegistry, error) {
	if !rt.Valid() {
		return nil, &common.RegistryError{Op: "new", Err: fmt.Errorf("unknown registry type %q", rt)}
	}
	return &ServerCardRegistry{registryType: rt, store: store, fs: fs, cfg: cfg, log: log}, nil
}

// RegistryType reports which card kind this registry serves.
func (r *ServerCardRegistry) RegistryType() models.RegistryType {
	return r.registryType
}

// CheckUIDExists reports whether a card with the uid is already registered.
func (r *ServerCardRegistry) CheckUIDExists(ctx context.Context, uid string) (bool, error) {
	return r.store.UIDExists(ctx, r.registryType, uid)
}

// NextVersion computes the version the next card of a lineage would get,
// without registering anything. When the lineage is empty the requested
// version (or the default first version) is returned as-is.
func (r *ServerCardRegistry) NextVersion(ctx context.Context, space, name, requested string, kind semver.BumpKind, pre, build string) (string, error) {
	var bounds *semver.Bounds
	if requested != "" {
		b, err := semver.ParseSpec(requested)
		if err != nil {
			return "", err
		}
		bounds = &b
	}

	versions, err := r.store.QueryVersions(ctx, r.registryType, space, name, bounds)
	if err != nil {
		return "", err
	}

	if len(versions) == 0 {
		base := requested
		if base == "" {
			base = defaultFirstVersion
		}
		v, err := semver.Parse(base)
		if err != nil {
			return "", err
		}
		return applyIdentifiers(v, pre, build)
	}

	latest, err := semver.Latest(versions)
	if err != nil {
		return "", err
	}
	next, err := semver.Bump(semver.Format(latest), kind, pre, build)
	if err != nil {
		return "", err
	}
	switch kind {
	case semver.BumpMajor, semver.BumpMinor, semver.BumpPatch:
		return applyIdentifiers(next, pre, build)
	}
	return semver.Format(next), nil
}

// applyIdentifiers attaches pre-release and build identifiers to a version
// when supplied.
func applyIdentifiers(v *semver.Version, pre, build string) (string, error) {
	if pre == "" && build == "" {
		return semver.Format(v), nil
	}
	tagged, err := semver.Bump(semver.Format(v), semver.BumpPreBuild, pre, build)
	if err != nil {
		return "", err
	}
	return semver.Format(tagged), nil
}

// CreateCard registers a card: it resolves the next version in the lineage,
// mints the per-card data key, and persists the row and the wrapped key in
// one transaction. The returned key carries the wrapped (never plaintext)
// data key.
func (r *ServerCardRegistry) CreateCard(ctx context.Context, req *models.CreateCardRequest) (*models.CreateCardResponse, error) {
	card := req.Card
	if card.Type == "" {
		card.Type = r.registryType
	}
	if card.Type != r.registryType {
		return nil, common.ErrRegistryTypeMismatch
	}

	if card.UID != "" {
		if _, err := uuid.Parse(card.UID); err != nil {
			return nil, common.ErrInvalidUID
		}
		exists, err := r.store.UIDExists(ctx, r.registryType, card.UID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, common.ErrUIDCollision
		}
	} else {
		card.UID = uuid.NewString()
	}

	kind, err := semver.ParseBumpKind(req.VersionType)
	if err != nil {
		return nil, err
	}
	version, err := r.NextVersion(ctx, card.Space, card.Name, req.Version, kind, req.PreTag, req.BuildTag)
	if err != nil {
		return nil, err
	}
	card.Version = version
	card.CreatedAt = time.Now().UTC()
	if card.AppEnv == "" {
		card.AppEnv = r.cfg.AppEnv
	}

	key, err := r.mintArtifactKey(card.UID, card.Space, card.Name, card.Version, card.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := r.store.CreateCard(ctx, &card, key); err != nil {
		return nil, err
	}

	r.log.Info(ctx, "card registered",
		"registry_type", string(r.registryType),
		"space", card.Space, "name", card.Name, "version", card.Version, "uid", card.UID)

	return &models.CreateCardResponse{
		Registered: true,
		Version:    card.Version,
		Space:      card.Space,
		Name:       card.Name,
		AppEnv:     card.AppEnv,
		CreatedAt:  card.CreatedAt,
		Key:        *key,
	}, nil
}

// mintArtifactKey derives a fresh data key for the card and wraps it under
// the uid-derived key for storage.
func (r *ServerCardRegistry) mintArtifactKey(uid, space, name, version string, createdAt time.Time) (*models.ArtifactKey, error) {
	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, &common.RegistryError{Op: "mint key", Err: err}
	}
	dataKey, err := cryptox.DeriveEncryptionKey([]byte(r.cfg.EncryptSecret), salt, string(r.registryType))
	if err != nil {
		return nil, &common.RegistryError{Op: "mint key", Err: err}
	}
	wrapped, err := cryptox.EncryptKey(uid, dataKey)
	if err != nil {
		return nil, &common.RegistryError{Op: "mint key", Err: err}
	}
	return &models.ArtifactKey{
		UID:          uid,
		Space:        space,
		RegistryType: r.registryType,
		EncryptedKey: wrapped,
		StorageKey:   fmt.Sprintf("%s/%s/v%s", space, name, version),
		CreatedAt:    createdAt,
	}, nil
}

// UpdateCard overwrites the card row. The version must still parse, but the
// uid and version pair itself is immutable: a different version would be a
// new card, not an update.
func (r *ServerCardRegistry) UpdateCard(ctx context.Context, card *models.Card) error {
	if card.Type != r.registryType {
		return common.ErrRegistryTypeMismatch
	}
	if _, err := semver.Parse(card.Version); err != nil {
		return err
	}

	existing, err := r.store.GetCard(ctx, r.registryType, card.UID)
	if err != nil {
		return err
	}
	if existing.Version != card.Version {
		return &common.RegistryError{Op: "update", Err: fmt.Errorf("version is immutable (was %s)", existing.Version)}
	}
	return r.store.UpdateCard(ctx, card)
}

// DeleteCard removes a card's blobs, its artifact key, and finally its row,
// in that order. The order is deliberate: a crash mid-delete leaves an
// orphaned card row rather than unreachable ciphertext in storage. Unlike a
// strict resolve-key-or-fail delete, a missing artifact key is not an error
// here: the row left behind by an earlier partial delete must itself stay
// deletable.
func (r *ServerCardRegistry) DeleteCard(ctx context.Context, uid string) error {
	key, err := r.store.GetArtifactKey(ctx, r.registryType, uid)
	if err != nil && !errors.Is(err, common.ErrArtifactKeyNotFound) {
		return err
	}

	if key != nil {
		files, err := r.fs.Find(ctx, key.StorageKey)
		if err != nil {
			return err
		}
		if len(files) > 0 {
			if err := r.fs.Rm(ctx, key.StorageKey, true); err != nil {
				return err
			}
		}
		if err := r.store.DeleteArtifactKey(ctx, r.registryType, uid); err != nil {
			return err
		}
	}

	if err := r.store.DeleteCard(ctx, r.registryType, uid); err != nil {
		return err
	}

	r.log.Info(ctx, "card deleted", "registry_type", string(r.registryType), "uid", uid)
	return nil
}

// GetCard fetches one card by uid.
func (r *ServerCardRegistry) GetCard(ctx context.Context, uid string) (*models.Card, error) {
	return r.store.GetCard(ctx, r.registryType, uid)
}

// ListCards searches the registry. A uid filter must be a well-formed uuid.
func (r *ServerCardRegistry) ListCards(ctx context.Context, args models.CardQueryArgs) ([]models.Card, error) {
	if args.UID != "" {
		if _, err := uuid.Parse(args.UID); err != nil {
			return nil, common.ErrInvalidUID
		}
	}
	return r.store.QueryCards(ctx, r.registryType, args)
}

// Versions lists the version strings of a lineage, optionally constrained by
// a version spec, newest first.
func (r *ServerCardRegistry) Versions(ctx context.Context, space, name, spec string) ([]string, error) {
	var bounds *semver.Bounds
	if spec != "" {
		b, err := semver.ParseSpec(spec)
		if err != nil {
			return nil, err
		}
		bounds = &b
	}
	return r.store.QueryVersions(ctx, r.registryType, space, name, bounds)
}

// ArtifactKey returns the stored (wrapped) artifact key for a card.
func (r *ServerCardRegistry) ArtifactKey(ctx context.Context, uid string) (*models.ArtifactKey, error) {
	return r.store.GetArtifactKey(ctx, r.registryType, uid)
}

// DecryptedKey unwraps a card's data key. Only callers that hold the uid can
// recover it.
func (r *ServerCardRegistry) DecryptedKey(ctx context.Context, uid string) ([]byte, error) {
	key, err := r.store.GetArtifactKey(ctx, r.registryType, uid)
	if err != nil {
		return nil, err
	}
	return cryptox.DecryptKey(uid, key.EncryptedKey)
}

// Spaces lists the distinct spaces registered for this card kind.
func (r *ServerCardRegistry) Spaces(ctx context.Context) ([]string, error) {
	return r.store.ListSpaces(ctx, r.registryType)
}

// Page returns one page of (space, name) lineages for registry browsing.
func (r *ServerCardRegistry) Page(ctx context.Context, req models.RegistryPageRequest) ([]models.RegistryPageEntry, error) {
	req.RegistryType = r.registryType
	return r.store.QueryPage(ctx, req)
}

// Stats summarizes this registry.
func (r *ServerCardRegistry) Stats(ctx context.Context) (*models.RegistryStats, error) {
	return r.store.QueryStats(ctx, r.registryType)
}
