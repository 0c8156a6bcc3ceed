package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"seat-booking-companion/internal/parse"
)

// Layout describes the physical tables of a venue. It is the source for the admin
// bulk create of areas and seats.
type Layout struct {
	Tables []TableLayout `yaml:"tables" json:"tables"`
}

// TableLayout is one table with a column of seats on each side.
type TableLayout struct {
	ID    string     `yaml:"id" json:"id"`
	Label string     `yaml:"label" json:"label"`
	Type  string     `yaml:"type" json:"type"`
	Left  *SeatGroup `yaml:"left" json:"left,omitempty"`
	Right *SeatGroup `yaml:"right" json:"right,omitempty"`
}

// SeatGroup is a vertical run of seats. The geometry fields end up in the seat description.
type SeatGroup struct {
	Count   int     `yaml:"count" json:"count"`
	StartX  float64 `yaml:"start_x" json:"startX"`
	StartY  float64 `yaml:"start_y" json:"startY"`
	Spacing float64 `yaml:"spacing" json:"spacing"`
	Width   float64 `yaml:"width" json:"width"`
	Height  float64 `yaml:"height" json:"height"`
	Shape   string  `yaml:"shape" json:"shape"`
	Scale   float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Mirror  bool    `yaml:"mirror,omitempty" json:"mirror,omitempty"`
	SVGPath string  `yaml:"svg_path,omitempty" json:"svgPath,omitempty"`
}

// Geometry is the rendering information stored as JSON in a seat's description.
type Geometry struct {
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Shape   string  `json:"shape,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Mirror  bool    `json:"mirror,omitempty"`
	SVGPath string  `json:"svgPath,omitempty"`
}

// LoadLayout reads a venue layout from a YAML file.
func LoadLayout(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := ParseLayout(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode layout %q: %w", path, err)
	}
	return l, nil
}

// ParseLayout decodes a YAML venue layout.
func ParseLayout(r io.Reader) (*Layout, error) {
	var l Layout
	if err := yaml.NewDecoder(r).Decode(&l); err != nil {
		return nil, err
	}
	if len(l.Tables) == 0 {
		return nil, errors.New("layout has no tables")
	}
	return &l, nil
}

// AreaRequests renders one area per table.
func (l *Layout) AreaRequests() []CreateAreaRequest {
	areas := make([]CreateAreaRequest, 0, len(l.Tables))
	for _, t := range l.Tables {
		capacity := 0
		if t.Left != nil {
			capacity += t.Left.Count
		}
		if t.Right != nil {
			capacity += t.Right.Count
		}
		desc, _ := json.Marshal(map[string]string{"type": t.Type})
		areas = append(areas, CreateAreaRequest{
			Name:        t.ID,
			NameZh:      t.Label,
			AreaType:    "MEETING_ROOM",
			Capacity:    capacity,
			Description: string(desc),
		})
	}
	return areas
}

// SeatRequests renders every seat of the layout. Seat numbers run <table>-01 upward,
// the left column (column 1) first, then the right column (column 2).
// Tables whose id has no entry in areaIDs are skipped.
func (l *Layout) SeatRequests(areaIDs map[string]int64) []CreateSeatRequest {
	var seats []CreateSeatRequest
	for _, t := range l.Tables {
		areaID, ok := areaIDs[t.ID]
		if !ok {
			log.Warnf("Area ID not found for table %s, skipping its seats", t.ID)
			continue
		}

		seq := 0
		for column, group := range []*SeatGroup{t.Left, t.Right} {
			if group == nil {
				continue
			}
			desc, _ := json.Marshal(Geometry{
				Width:   group.Width,
				Height:  group.Height,
				Shape:   group.Shape,
				Scale:   group.Scale,
				Mirror:  group.Mirror,
				SVGPath: group.SVGPath,
			})
			for i := 0; i < group.Count; i++ {
				seq++
				seats = append(seats, CreateSeatRequest{
					SeatNumber:  parse.FormatSeatNumber(t.ID, seq),
					Table:       t.ID,
					AreaID:      areaID,
					RowNum:      i + 1,
					ColumnNum:   column + 1,
					PositionX:   group.StartX,
					PositionY:   group.StartY + float64(i)*group.Spacing,
					Description: string(desc),
				})
			}
		}
	}
	return seats
}

// CreateArea creates one area and returns it with its backend id.
func (c *Client) CreateArea(ctx context.Context, req CreateAreaRequest) (*Area, error) {
	var a Area
	if err := c.send(ctx, http.MethodPost, "/api/v1/admin/areas", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DeleteArea(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/admin/areas/%d", id), nil, nil)
}

// CreateSeats bulk-creates seats.
func (c *Client) CreateSeats(ctx context.Context, seats []CreateSeatRequest) error {
	return c.send(ctx, http.MethodPost, "/api/v1/admin/seats/batch", map[string]any{"seats": seats}, nil)
}

func (c *Client) DeleteSeat(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/admin/seats/%d", id), nil, nil)
}

// ProvisionLayout creates every area of the layout, then bulk-creates their seats.
func (c *Client) ProvisionLayout(ctx context.Context, l *Layout) ([]Area, error) {
	areaIDs := make(map[string]int64, len(l.Tables))
	var created []Area
	for _, req := range l.AreaRequests() {
		a, err := c.CreateArea(ctx, req)
		if err != nil {
			return created, fmt.Errorf("failed to create area %s: %w", req.Name, err)
		}
		areaIDs[req.Name] = a.ID
		created = append(created, *a)
	}

	seats := l.SeatRequests(areaIDs)
	if len(seats) == 0 {
		return created, nil
	}
	if err := c.CreateSeats(ctx, seats); err != nil {
		return created, fmt.Errorf("failed to create %d seats: %w", len(seats), err)
	}
	log.Infof("Provisioned %d areas and %d seats", len(created), len(seats))
	return created, nil
}
