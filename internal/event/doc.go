/*
Package event provides a typed pub/sub event system for colorbook.

Components publish state transitions on a Bus and other components react to
them without direct dependencies: the connectivity monitor announces
transitions, the sync coordinator subscribes to them and announces its own
state changes, and the editor announces saved and opened projects.

# Architecture

The Bus keeps direct-call subscribers so event data keeps its Go type. User
notifications additionally travel over a watermill gochannel topic
(NotificationTopic) so that a consumer such as the CLI watch command can
drain them as a stream with Notifications.

# Event Types

Connectivity and sync:
  - connectivity.changed: host reported an online/offline transition
  - sync.state: the coordinator moved between Idle, PromptingUser and Replaying
  - replay.failed: one queued request failed during replay

Queue:
  - request.queued: a request was deferred while offline
  - queue.cleared: the offline queue was cleared as one batch

Projects:
  - project.saved, project.deleted, project.opened

Notifications:
  - notification: a user-visible message (see Notify)

# Usage

	bus := event.NewBus()
	defer bus.Close()

	unsub := bus.Subscribe(event.ConnectivityChanged, func(e event.Event) {
		data := e.Data.(event.ConnectivityChangedData)
		fmt.Println("online:", data.Online)
	})
	defer unsub()

	bus.PublishSync(event.Event{
		Type: event.ConnectivityChanged,
		Data: event.ConnectivityChangedData{Online: true},
	})

PublishSync calls subscribers in order on the caller's goroutine, so a
subscriber sees events in the order they were published.
*/
package event
