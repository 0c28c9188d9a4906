package render

// teardown collects destroy steps as resources are created and runs them in
// reverse order.
type teardown struct {
	steps []func()
}

func (t *teardown) push(step func()) {
	t.steps = append(t.steps, step)
}

func (t *teardown) run() {
	for i := len(t.steps) - 1; i >= 0; i-- {
		t.steps[i]()
	}
	t.steps = nil
}
