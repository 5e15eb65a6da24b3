// Package facility loads hospital facility definitions (screens, queues,
// counters, kiosks and parameters) written in CUE and seeds them into the
// store.
package facility

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
)

//go:embed schema.cue
var schemaSrc []byte

// Definition is a validated facility.
type Definition struct {
	Screens    []model.Screen    `json:"screens"`
	Queues     []model.Queue     `json:"queues"`
	Counters   []model.Counter   `json:"counters"`
	Kiosks     []model.Kiosk     `json:"kiosks"`
	Parameters map[string]string `json:"parameters"`
}

// Load reads and unifies one or more CUE files into a Definition.
func Load(paths ...string) (Definition, error) {
	if len(paths) == 0 {
		return Definition{}, model.InvalidArgument("load facility", "no facility files given")
	}
	files := make(map[string][]byte, len(paths))
	order := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return Definition{}, fmt.Errorf("read facility file: %w", err)
		}
		files[p] = data
		order = append(order, p)
	}
	return parse(order, files)
}

// Parse validates a single CUE source. filename is used in error positions.
func Parse(filename string, src []byte) (Definition, error) {
	return parse([]string{filename}, map[string][]byte{filename: src})
}

func parse(order []string, files map[string][]byte) (Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return Definition{}, fmt.Errorf("compile facility schema: %w", err)
	}
	for _, name := range order {
		f := ctx.CompileBytes(files[name], cue.Filename(name))
		if err := f.Err(); err != nil {
			return Definition{}, cueError(err)
		}
		v = v.Unify(f)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Definition{}, cueError(err)
	}

	var def Definition
	if err := v.Decode(&def); err != nil {
		return Definition{}, cueError(err)
	}
	if def.Parameters == nil {
		def.Parameters = map[string]string{}
	}
	if err := def.check(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// cueError reports the first CUE error with its path and position.
func cueError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return model.InvalidArgument("validate facility", err.Error())
	}
	first := errs[0]
	msg := first.Error()
	if path := strings.Join(first.Path(), "."); path != "" && !strings.Contains(msg, path) {
		msg = path + ": " + msg
	}
	if pos := errors.Positions(first); len(pos) > 0 && pos[0].IsValid() {
		msg = fmt.Sprintf("%s:%d:%d: %s", pos[0].Filename(), pos[0].Line(), pos[0].Column(), msg)
	}
	return model.InvalidArgument("validate facility", msg)
}

// check enforces what the schema cannot: unique ids and references between
// entities.
func (d Definition) check() error {
	const op = "validate facility"

	screens := map[int64]bool{}
	for _, s := range d.Screens {
		if screens[s.ID] {
			return model.InvalidArgument(op, fmt.Sprintf("duplicate screen id %d", s.ID))
		}
		screens[s.ID] = true
	}
	queues := map[int64]bool{}
	for _, q := range d.Queues {
		if queues[q.ID] {
			return model.InvalidArgument(op, fmt.Sprintf("duplicate queue id %d", q.ID))
		}
		queues[q.ID] = true
		if q.ScreenID != 0 && !screens[q.ScreenID] {
			return model.InvalidArgument(op, fmt.Sprintf("queue %d references unknown screen %d", q.ID, q.ScreenID))
		}
	}
	counters := map[int64]bool{}
	for _, c := range d.Counters {
		if counters[c.ID] {
			return model.InvalidArgument(op, fmt.Sprintf("duplicate counter id %d", c.ID))
		}
		counters[c.ID] = true
		if !queues[c.QueueID] {
			return model.InvalidArgument(op, fmt.Sprintf("counter %d references unknown queue %d", c.ID, c.QueueID))
		}
	}
	kiosks := map[int64]bool{}
	for _, k := range d.Kiosks {
		if kiosks[k.ID] {
			return model.InvalidArgument(op, fmt.Sprintf("duplicate kiosk id %d", k.ID))
		}
		kiosks[k.ID] = true
		bound := map[int64]bool{}
		for _, kq := range k.Queues {
			if !queues[kq.QueueID] {
				return model.InvalidArgument(op, fmt.Sprintf("kiosk %d references unknown queue %d", k.ID, kq.QueueID))
			}
			if bound[kq.QueueID] {
				return model.InvalidArgument(op, fmt.Sprintf("kiosk %d lists queue %d twice", k.ID, kq.QueueID))
			}
			bound[kq.QueueID] = true
		}
	}
	return nil
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Screens    int `json:"screens"`
	Queues     int `json:"queues"`
	Counters   int `json:"counters"`
	Kiosks     int `json:"kiosks"`
	Parameters int `json:"parameters"`
}

// Seed upserts the definition into the store in one transaction.
func Seed(ctx context.Context, st *store.Store, def Definition) (SeedResult, error) {
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		for _, s := range def.Screens {
			if err := tx.UpsertScreen(ctx, s); err != nil {
				return err
			}
		}
		for _, q := range def.Queues {
			if err := tx.UpsertQueue(ctx, q); err != nil {
				return err
			}
		}
		for _, c := range def.Counters {
			if err := tx.UpsertCounter(ctx, c); err != nil {
				return err
			}
		}
		for _, k := range def.Kiosks {
			if err := tx.UpsertKiosk(ctx, k); err != nil {
				return err
			}
		}
		for code, value := range def.Parameters {
			if err := tx.SetParameter(ctx, code, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	res := SeedResult{
		Screens:    len(def.Screens),
		Queues:     len(def.Queues),
		Counters:   len(def.Counters),
		Kiosks:     len(def.Kiosks),
		Parameters: len(def.Parameters),
	}
	slog.Info("facility seeded",
		"screens", res.Screens, "queues", res.Queues, "counters", res.Counters,
		"kiosks", res.Kiosks, "parameters", res.Parameters)
	return res, nil
}
