package core

import (
	"fmt"
	"sort"
)

// Pipeline holds a collection of processors and manages their execution
type Pipeline struct {
	processors []Processor
}

// NewPipeline creates a new pipeline instance
func NewPipeline(processors ...Processor) *Pipeline {
	p := &Pipeline{
		processors: make([]Processor, 0, len(processors)),
	}
	for _, processor := range processors {
		p.AddProcessor(processor)
	}
	return p
}

// AddProcessor adds a processor, keeping the list ordered by priority
// (lower number = runs earlier). Equal priorities keep insertion order.
func (p *Pipeline) AddProcessor(processor Processor) {
	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Priority() < p.processors[j].Priority()
	})
}

// Processors returns the processors in execution order.
func (p *Pipeline) Processors() []Processor {
	out := make([]Processor, len(p.processors))
	copy(out, p.processors)
	return out
}

// ExecuteRequest runs every processor's OnRequest in priority order, feeding
// each one the previous result.
func (p *Pipeline) ExecuteRequest(ctx *RelayContext, body []byte) ([]byte, error) {
	for _, processor := range p.processors {
		next, err := processor.OnRequest(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", processor.Name(), err)
		}
		body = next
	}
	return body, nil
}

// ExecuteResponse runs every processor's OnResponse in priority order.
func (p *Pipeline) ExecuteResponse(ctx *RelayContext, body []byte) ([]byte, error) {
	for _, processor := range p.processors {
		next, err := processor.OnResponse(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", processor.Name(), err)
		}
		body = next
	}
	return body, nil
}
