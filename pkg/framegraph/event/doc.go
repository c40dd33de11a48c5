// Package event provides an in-process event bus for run lifecycle events.
//
// The runtime publishes run.* and stage.* events when a bus is configured
// with framegraph.WithEventBus. Consumers such as the CLI subscribe to
// render progress without the runtime knowing about terminals.
//
//	bus := event.NewBus(event.DefaultBusConfig)
//	defer bus.Close()
//	bus.Subscribe([]string{event.TypeStageProgress}, event.HandlerFunc(
//	    func(ctx context.Context, evt event.Event) error {
//	        p := evt.Data().(event.StagePayload)
//	        fmt.Printf("stage %d: %d frames\n", p.Stage, p.Frames)
//	        return nil
//	    }))
package event
