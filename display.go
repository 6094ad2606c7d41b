package livekit

// Display is a capturable display, as returned by Client.DisplaySources.
type Display struct {
	ownedHandle
	client *Client
}

func newDisplay(c *Client, h Handle) *Display {
	d := &Display{client: c}
	d.ownedHandle = wrapHandle(d, c.native, h, GetRule)
	return d
}

// Retain returns a new wrapper holding its own reference to the same display.
func (d *Display) Retain() *Display {
	h := d.Handle()
	if h == 0 {
		return nil
	}
	return newDisplay(d.client, h)
}

// Close releases the display. Calling Close more than once is a no-op.
func (d *Display) Close() error {
	d.close()
	return nil
}

// onDisplaySources is the one-shot trampoline for DisplaySources. sources and
// err are borrowed; every display is retained before it leaves the call.
func onDisplaySources(ctx uintptr, sources Handle, err Handle) {
	p, ok := takeCompletion[[]*Display](ctx)
	if !ok {
		return
	}
	n := p.client.native
	if sources == 0 {
		msg := "unknown error"
		if err != 0 {
			msg = n.StringValue(err)
		}
		p.resolve(nil, &OperationError{Op: p.op, Message: msg})
		return
	}

	count := n.ArrayCount(sources)
	displays := make([]*Display, 0, count)
	for i := 0; i < count; i++ {
		if h := n.ArrayAt(sources, i); h != 0 {
			displays = append(displays, newDisplay(p.client, h))
		}
	}
	p.resolve(displays, nil)
}
