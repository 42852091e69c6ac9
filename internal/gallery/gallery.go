// Package gallery holds the images the site displays: a built-in default per
// key, replaced by a custom upload when one exists.
//
// Startup reads every key from the store concurrently. Uploads update the
// in-memory state first and persist in the background; a failed write only
// means the custom image will not survive a restart.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/cmstory/internal/imaging"
	"github.com/roach88/cmstory/internal/store"
)

// MaxUploadSize bounds an uploaded file.
const MaxUploadSize = 10 << 20

// ErrTooLarge is returned for uploads over MaxUploadSize.
var ErrTooLarge = fmt.Errorf("upload exceeds %d bytes", MaxUploadSize)

// Persister is the storage the gallery reads at startup and writes on upload.
// *store.Store satisfies it.
type Persister interface {
	Get(ctx context.Context, key store.Key) (string, bool, error)
	PutAsync(ctx context.Context, key store.Key, value string) <-chan store.Outcome
}

// Refiner post-processes an uploaded logo. It must not fail; on error it
// returns its input.
type Refiner func(ctx context.Context, dataURI string) string

// Asset is what the display layer renders for a key.
type Asset struct {
	Key    store.Key
	Src    string
	Custom bool
}

var defaults = map[store.Key]string{
	store.KeyLogo:     "/static/logo.svg",
	store.KeyPatent:   "/static/patent.svg",
	store.KeyBoxing:   "/static/boxing.svg",
	store.KeyFootball: "/static/football.svg",
}

// DefaultSrc returns the built-in asset path for key.
func DefaultSrc(key store.Key) string {
	return defaults[key]
}

// Option configures a Gallery.
type Option func(*Gallery)

// WithRefiner sets the logo post-processing step.
func WithRefiner(r Refiner) Option {
	return func(g *Gallery) { g.refine = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gallery) { g.logger = logger }
}

// Gallery is safe for concurrent use.
type Gallery struct {
	store  Persister
	refine Refiner
	logger *slog.Logger

	mu     sync.RWMutex
	custom map[store.Key]string
	seq    map[store.Key]uint64 // uploads per key
	loaded bool

	// writeMu serializes background writes per key so only the newest
	// upload's value is written last.
	writeMu map[store.Key]*sync.Mutex
	pending sync.WaitGroup
}

// New creates a gallery with every key at its default.
func New(p Persister, opts ...Option) *Gallery {
	g := &Gallery{
		store:   p,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		custom:  make(map[store.Key]string),
		seq:     make(map[store.Key]uint64),
		writeMu: make(map[store.Key]*sync.Mutex),
	}
	for _, key := range store.Keys() {
		g.writeMu[key] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load reads every key concurrently and applies the stored images. Keys
// that are absent or fail to read keep their default; read failures are
// logged once. A key uploaded while
// Load runs is not overwritten by the older stored value.
func (g *Gallery) Load(ctx context.Context) {
	var grp errgroup.Group
	for _, key := range store.Keys() {
		key := key
		grp.Go(func() error {
			value, ok, err := g.store.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			if ok {
				g.restore(key, value)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		g.logger.Warn("image read failed, using defaults", "error", err)
	}

	g.mu.Lock()
	g.loaded = true
	g.mu.Unlock()
	g.logger.Debug("gallery loaded", "custom", g.customCount())
}

// Loaded reports whether the startup load has finished. Until then the
// display layer shows defaults as pending.
func (g *Gallery) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

// Upload replaces the image for key. The new image is visible immediately;
// persistence happens in the background. For the logo the refiner runs
// after the original is written, and its result replaces the original when
// it differs.
//
// The returned channel receives one Outcome per write attempted and is
// closed when background work for this upload ends. Callers may ignore it.
func (g *Gallery) Upload(ctx context.Context, key store.Key, r io.Reader, contentType string) (<-chan store.Outcome, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	uri, err := imaging.Encode(data, contentType)
	if err != nil {
		return nil, err
	}

	seq := g.set(key, uri)
	g.logger.Info("image uploaded", "key", key, "bytes", len(data))

	out := make(chan store.Outcome, 2)
	bg := context.WithoutCancel(ctx)

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		defer close(out)

		if !g.persist(bg, key, seq, uri, out) {
			return
		}
		if key != store.KeyLogo || g.refine == nil {
			return
		}

		refined := g.refine(bg, uri)
		if refined == uri || !g.replace(key, seq, refined) {
			return
		}
		g.persist(bg, key, seq, refined, out)
	}()

	return out, nil
}

// persist writes value if upload seq is still the newest for key.
func (g *Gallery) persist(ctx context.Context, key store.Key, seq uint64, value string, out chan<- store.Outcome) bool {
	mu := g.writeMu[key]
	mu.Lock()
	defer mu.Unlock()

	if !g.current(key, seq) {
		return false
	}
	out <- <-g.store.PutAsync(ctx, key, value)
	return true
}

// Wait blocks until background writes from earlier uploads have finished.
func (g *Gallery) Wait() {
	g.pending.Wait()
}

// Resolve returns the asset to render for key.
func (g *Gallery) Resolve(key store.Key) Asset {
	g.mu.RLock()
	_, custom := g.custom[key]
	g.mu.RUnlock()

	if custom {
		return Asset{Key: key, Src: "/images/" + string(key), Custom: true}
	}
	return Asset{Key: key, Src: DefaultSrc(key)}
}

// Assets resolves every key.
func (g *Gallery) Assets() map[store.Key]Asset {
	assets := make(map[store.Key]Asset, len(defaults))
	for _, key := range store.Keys() {
		assets[key] = g.Resolve(key)
	}
	return assets
}

// ErrNoCustomImage is returned by Image when key shows its default.
var ErrNoCustomImage = errors.New("no custom image")

// Image returns the decoded custom image for key.
func (g *Gallery) Image(key store.Key) (imaging.Image, error) {
	g.mu.RLock()
	uri, ok := g.custom[key]
	g.mu.RUnlock()

	if !ok {
		return imaging.Image{}, ErrNoCustomImage
	}
	return imaging.Decode(uri)
}

// DataURI returns the raw stored form of the custom image for key.
func (g *Gallery) DataURI(key store.Key) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	uri, ok := g.custom[key]
	return uri, ok
}

func (g *Gallery) set(key store.Key, uri string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq[key]++
	g.custom[key] = uri
	return g.seq[key]
}

// restore applies a stored value unless an upload already replaced key.
func (g *Gallery) restore(key store.Key, uri string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq[key] > 0 {
		return
	}
	g.custom[key] = uri
}

// replace swaps in a refined image if no newer upload happened.
func (g *Gallery) replace(key store.Key, seq uint64, uri string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq[key] != seq {
		return false
	}
	g.custom[key] = uri
	return true
}

func (g *Gallery) current(key store.Key, seq uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq[key] == seq
}

func (g *Gallery) customCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.custom)
}
