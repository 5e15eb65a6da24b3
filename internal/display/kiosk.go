package display

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/roach88/qms/internal/model"
)

const kioskNameWidth = 20

// KioskSource is the read side a kiosk view is built from. *cache.Cache
// satisfies it.
type KioskSource interface {
	KioskByNameOrIP(s string) (model.Kiosk, bool)
	Queue(id int64) (model.Queue, bool)
	Tickets(queueID int64, take int) []model.Ticket
	Day() model.Day
}

// KioskQueue is one button on a kiosk.
type KioskQueue struct {
	QueueID      int64  `json:"queue_id"`
	Name         string `json:"name"`
	QueueName    string `json:"queue_name"`
	ScreenID     int64  `json:"screen_id,omitempty"`
	Priority     int    `json:"priority,omitempty"`
	DisplayOrder int    `json:"display_order"`
	Waiting      int    `json:"waiting"`
}

// KioskView is what a kiosk offers to patients.
type KioskView struct {
	KioskID   int64        `json:"kiosk_id"`
	KioskName string       `json:"kiosk_name"`
	IPAddress string       `json:"ip_address,omitempty"`
	Day       model.Day    `json:"day"`
	Queues    []KioskQueue `json:"queues"`
}

// Kiosk builds the view of the kiosk named (or addressed) nameOrIP. Inactive
// bindings and inactive or unknown queues are left out; the rest are ordered
// by display order.
func Kiosk(src KioskSource, nameOrIP string) (KioskView, error) {
	k, ok := src.KioskByNameOrIP(nameOrIP)
	if !ok {
		return KioskView{}, model.NotFound("build kiosk", fmt.Sprintf("kiosk %q not found", nameOrIP))
	}

	v := KioskView{KioskID: k.ID, KioskName: k.Name, IPAddress: k.IPAddress, Day: src.Day(), Queues: []KioskQueue{}}
	for _, kq := range k.Queues {
		if !kq.Active {
			continue
		}
		q, ok := src.Queue(kq.QueueID)
		if !ok || !q.Active {
			continue
		}
		name := kq.DisplayText
		if name == "" {
			name = q.Name
		}
		v.Queues = append(v.Queues, KioskQueue{
			QueueID:      q.ID,
			Name:         name,
			QueueName:    q.Name,
			ScreenID:     q.ScreenID,
			Priority:     kq.Priority,
			DisplayOrder: kq.DisplayOrder,
			Waiting:      countWaiting(src.Tickets(q.ID, 0)),
		})
	}
	slices.SortStableFunc(v.Queues, func(a, b KioskQueue) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.QueueID, b.QueueID)
	})
	return v, nil
}

func countWaiting(tickets []model.Ticket) int {
	n := 0
	for _, t := range tickets {
		if t.State == model.StateWait {
			n++
		}
	}
	return n
}

// RenderKiosk writes v as a numbered menu.
func RenderKiosk(w io.Writer, v KioskView, profile termenv.Profile) error {
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	r.SetColorProfile(profile)
	st := newStyles(r)
	name := st.queue.Width(kioskNameWidth)

	var sb strings.Builder
	sb.WriteString(st.title.Render(fmt.Sprintf("%s | %s", v.KioskName, v.Day)))
	sb.WriteString("\n")
	if len(v.Queues) == 0 {
		sb.WriteString(st.faint.Render("  no queues"))
		sb.WriteString("\n")
	}
	for i, q := range v.Queues {
		fmt.Fprintf(&sb, "  %d. ", i+1)
		sb.WriteString(name.Render(q.Name))
		sb.WriteString(st.faint.Render(fmt.Sprintf("%d waiting", q.Waiting)))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
