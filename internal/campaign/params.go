package campaign

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/osteele/liquid"
	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/domain"
)

// ParamRenderer expands a message's custom parameter templates for one
// visitor. Parameter values are Liquid templates, e.g. "{{ visitor.name |
// default: 'there' }}".
type ParamRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

func NewParamRenderer() *ParamRenderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil || fmt.Sprint(value) == "" {
			return fallback
		}
		return value
	})
	engine.RegisterFilter("first_name", func(s string) string {
		if f := strings.Fields(s); len(f) > 0 {
			return f[0]
		}
		return s
	})
	return &ParamRenderer{engine: engine}
}

// Check compiles every parameter template without rendering it.
func (r *ParamRenderer) Check(params map[string]string) error {
	for name, src := range params {
		if _, err := r.parse(src); err != nil {
			return fmt.Errorf("param %q: %w", name, err)
		}
	}
	return nil
}

func (r *ParamRenderer) parse(src string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	r.cache.Store(src, tpl)
	return tpl, nil
}

// Recipient builds the channel recipient for v. The name and phone params
// are always present; message params follow in name order and may not
// override them.
func (r *ParamRenderer) Recipient(v domain.Visitor, c domain.Campaign, m domain.Message) (channel.Recipient, error) {
	rec := channel.Recipient{
		WhatsAppNumber: v.WhatsAppNumber,
		CustomParams: []channel.CustomParam{
			{Name: "name", Value: v.Name},
			{Name: "phone", Value: v.WhatsAppNumber},
		},
	}
	if len(m.Params) == 0 {
		return rec, nil
	}

	bindings := map[string]interface{}{
		"visitor": map[string]interface{}{
			"id":    v.ID.String(),
			"name":  v.Name,
			"phone": v.WhatsAppNumber,
		},
		"campaign": map[string]interface{}{
			"id":   c.ID.String(),
			"name": c.Name,
		},
	}

	names := make([]string, 0, len(m.Params))
	for name := range m.Params {
		if name == "name" || name == "phone" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tpl, err := r.parse(m.Params[name])
		if err != nil {
			return channel.Recipient{}, fmt.Errorf("param %q: %w", name, err)
		}
		out, err := tpl.RenderString(bindings)
		if err != nil {
			return channel.Recipient{}, fmt.Errorf("render param %q: %w", name, err)
		}
		rec.CustomParams = append(rec.CustomParams, channel.CustomParam{Name: name, Value: out})
	}
	return rec, nil
}
