package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by a Store that holds no session id yet.
var ErrNotFound = errors.New("session: no stored id")

// Store persists a single session id. Any Load error other than ErrNotFound
// means the storage is unavailable.
type Store interface {
	Load() (string, error)
	Save(id string) error
}

const (
	guestPrefix     = "guest_"
	randomLength    = 9
	signatureLength = 10
)

// Identity hands out the stable anonymous session id of one device.
type Identity struct {
	store     Store
	signature string
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
	id string
}

func NewIdentity(store Store, signature string, logger *zap.Logger) *Identity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{
		store:     store,
		signature: signature,
		logger:    logger,
		now:       time.Now,
	}
}

// GetOrCreate returns the stored id, generating and persisting one on first use.
// It never fails: when storage is unavailable the id lives in memory for the
// lifetime of the Identity.
func (i *Identity) GetOrCreate() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}

	stored, err := i.store.Load()
	switch {
	case err == nil && stored != "":
		i.id = stored
		return i.id
	case err == nil, errors.Is(err, ErrNotFound):
		i.id = Generate(i.now(), i.signature)
		if err := i.store.Save(i.id); err != nil {
			i.logger.Warn("Session storage unavailable, keeping session id in memory",
				zap.String("session_id", i.id), zap.Error(err))
		}
	default:
		i.id = Generate(i.now(), i.signature)
		i.logger.Warn("Session storage unreadable, using in-memory session id",
			zap.String("session_id", i.id), zap.Error(err))
	}
	return i.id
}

// Generate builds a guest session id of the form
// guest_<unix millis>_<9 random chars>_<signature digest>.
func Generate(now time.Time, signature string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:randomLength]
	return fmt.Sprintf("%s%d_%s_%s", guestPrefix, now.UnixMilli(), random, encodeSignature(signature))
}

func encodeSignature(signature string) string {
	if signature == "" {
		signature = "unknown"
	}
	enc := base64.RawURLEncoding.EncodeToString([]byte(signature))
	if len(enc) > signatureLength {
		enc = enc[:signatureLength]
	}
	return enc
}

// IsGuestID reports whether id has the shape produced by Generate.
func IsGuestID(id string) bool {
	if !strings.HasPrefix(id, guestPrefix) {
		return false
	}
	parts := strings.SplitN(strings.TrimPrefix(id, guestPrefix), "_", 3)
	return len(parts) == 3 && parts[0] != "" && len(parts[1]) == randomLength && parts[2] != ""
}

// Fixed is a provider for an id that was resolved elsewhere.
type Fixed string

func (f Fixed) GetOrCreate() string {
	return string(f)
}
