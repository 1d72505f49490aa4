package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// Tour is a catalog entry.
type Tour struct {
	ID              uint64           `json:"id"`
	Title           string           `json:"title"`
	BasePrice       int64            `json:"base_price"`
	MaxParticipants int              `json:"max_participants"`
	Transports      map[string]int64 `json:"transports"` // option name -> surcharge per participant
}

// Catalog is an in-process tour catalog.
type Catalog struct {
	mu    sync.RWMutex
	tours map[uint64]Tour
}

// NewCatalog returns a catalog holding tours.
func NewCatalog(tours ...Tour) *Catalog {
	c := &Catalog{tours: make(map[uint64]Tour, len(tours))}
	for _, t := range tours {
		c.Put(t)
	}
	return c
}

// LoadCatalog decodes a JSON array of tours.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var tours []Tour
	if err := json.NewDecoder(r).Decode(&tours); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for _, t := range tours {
		if t.ID == 0 || t.MaxParticipants < 1 || t.BasePrice < 0 {
			return nil, fmt.Errorf("%w: catalog tour %d is incomplete", model.ErrValidation, t.ID)
		}
	}
	return NewCatalog(tours...), nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Put adds or replaces a tour.
func (c *Catalog) Put(t Tour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tours[t.ID] = t
}

func (c *Catalog) get(id uint64) (Tour, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tours[id]
	if !ok {
		return Tour{}, model.ErrTourNotFound
	}
	return t, nil
}

// GetCapacity returns the tour's maximum participants per date.
func (c *Catalog) GetCapacity(_ context.Context, tourID uint64) (int, error) {
	t, err := c.get(tourID)
	return t.MaxParticipants, err
}

// GetPrice returns the tour's base price.
func (c *Catalog) GetPrice(_ context.Context, tourID uint64) (int64, error) {
	t, err := c.get(tourID)
	return t.BasePrice, err
}

// GetTransportSurcharge returns the surcharge of a transport option.
func (c *Catalog) GetTransportSurcharge(_ context.Context, tourID uint64, transport string) (int64, error) {
	t, err := c.get(tourID)
	if err != nil {
		return 0, err
	}
	s, ok := t.Transports[transport]
	if !ok {
		return 0, model.ErrTransportNotFound
	}
	return s, nil
}
