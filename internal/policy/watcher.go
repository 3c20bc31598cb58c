package policy

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 500 * time.Millisecond

// Watch reloads the catalog whenever its directory changes, until ctx ends.
// Bursts of events are coalesced into one reload. A failed reload is logged
// and the previous regions stay in force.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return err
	}

	reload := make(chan struct{}, 1)
	go c.scheduleReload(ctx, reload, reloadDelay)
	c.handleWatcher(ctx, watcher, reload)
	return nil
}

func (c *Catalog) handleWatcher(
	ctx context.Context,
	watcher *fsnotify.Watcher,
	reload chan<- struct{},
) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Create|fsnotify.Rename) != 0 {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("policy watcher error", "error", err)
		}
	}
}

func (c *Catalog) scheduleReload(
	ctx context.Context,
	reload <-chan struct{},
	delay time.Duration,
) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-reload:
			if timer != nil {
				timer.Reset(delay)
			} else {
				timer = time.NewTimer(delay)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			timer = nil
			if err := c.Reload(); err != nil {
				c.logger.Warn("keeping previous region policies", "error", err)
			}
		}
	}
}
