package pipeline

import (
	"fmt"
)

type edgeRef interface {
	isAttached() bool
	origin() string
}

func (e *Edge[T]) isAttached() bool {
	return e.attached
}

func (e *Edge[T]) origin() string {
	return e.from
}

// graph is the list of nodes and edges built by Graph handles.
// It is frozen when the pipeline starts.
type graph struct {
	nodes  []node
	edges  []edgeRef
	errs   []error
	frozen bool
}

func (g *graph) add(n node, outs ...edgeRef) {
	g.nodes = append(g.nodes, n)
	g.edges = append(g.edges, outs...)
}

func (g *graph) freeze() error {
	if g.frozen {
		return fmt.Errorf("pipeline has already been started")
	}
	g.frozen = true

	if len(g.errs) != 0 {
		return g.errs[0]
	}

	for _, e := range g.edges {
		if !e.isAttached() {
			return fmt.Errorf("output of %s is not connected to any element", e.origin())
		}
	}

	return nil
}

func attach[T any](g *graph, e *Edge[T], consumer interface{}) bool {
	if g.frozen {
		g.errs = append(g.errs, fmt.Errorf("cannot attach %s: pipeline has already been started", labelOf(consumer)))
		return false
	}

	if e.attached {
		g.errs = append(g.errs, fmt.Errorf("cannot attach %s: output of %s is already connected",
			labelOf(consumer), e.from))
		return false
	}

	e.attached = true

	if c, ok := consumer.(EdgeConfigurer); ok {
		e.conf = c.InboundEdge()
	}

	return true
}

// Graph is a handle to the tail of a pipeline under construction.
type Graph[T any] struct {
	g    *graph
	tail *Edge[T]
}

// From starts a pipeline with a source.
func From[T any](src Source[T]) *Graph[T] {
	g := &graph{}

	out := NewEdge[T](EdgeConfig{})
	out.from = labelOf(src)

	g.add(&sourceNode[T]{
		nodeBase: nodeBase{element: src},
		src:      src,
		out:      out,
	}, out)

	return &Graph[T]{g: g, tail: out}
}

// To appends a processing unit to the pipeline.
func To[In, Out any](gr *Graph[In], u Unit[In, Out]) *Graph[Out] {
	out := NewEdge[Out](EdgeConfig{})
	out.from = labelOf(u)

	if attach(gr.g, gr.tail, u) {
		gr.g.add(&unitNode[In, Out]{
			nodeBase: nodeBase{element: u},
			unit:     u,
			in:       gr.tail,
			out:      out,
		}, out)
	}

	return &Graph[Out]{g: gr.g, tail: out}
}

// Branch inserts a splitter. Every value is delivered both to the sub-pipeline
// built by fn and to the returned continuation.
func (gr *Graph[T]) Branch(fn func(*Graph[T])) *Graph[T] {
	cont := NewEdge[T](EdgeConfig{})
	cont.from = "splitter"
	branch := NewEdge[T](EdgeConfig{})
	branch.from = "splitter"

	sp := &splitterNode[T]{
		in:   gr.tail,
		outs: []*Edge[T]{cont, branch},
	}
	sp.element = sp

	if attach(gr.g, gr.tail, sp) {
		gr.g.add(sp, cont, branch)
	}

	fn(&Graph[T]{g: gr.g, tail: branch})

	return &Graph[T]{g: gr.g, tail: cont}
}

// Flush terminates the pipeline with a sink.
func (gr *Graph[T]) Flush(sink Sink[T]) *Pipeline {
	if attach(gr.g, gr.tail, sink) {
		gr.g.add(&sinkNode[T]{
			nodeBase: nodeBase{element: sink},
			sink:     sink,
			in:       gr.tail,
		})
	}

	return &Pipeline{g: gr.g}
}

// Build terminates the pipeline with a sink that discards every value.
func (gr *Graph[T]) Build() *Pipeline {
	return gr.Flush(&Discard[T]{})
}
