package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tuomaz/gohaws"
	"go.uber.org/zap"
)

// callTimeout bounds a single Home Assistant service call, so a missing
// reply cannot stall a control tick.
const callTimeout = 500 * time.Millisecond

type serviceCaller interface {
	CallService(ctx context.Context, domain string, service string, data interface{}, target string) error
}

// newHaService connects to Home Assistant. ctx owns the websocket and must
// outlive every caller of publishCommand.
func newHaService(ctx context.Context, logger *zap.SugaredLogger, uri string, token string) *haService {
	client := gohaws.New(ctx, uri, token)
	haService := &haService{
		client:  client,
		caller:  client,
		context: ctx,
		logger:  logger.Named("ha"),
		timeout: callTimeout,
	}
	go haService.run()
	return haService
}

type haService struct {
	context context.Context
	client  *gohaws.HaClient
	caller  serviceCaller
	logger  *zap.SugaredLogger
	timeout time.Duration

	// callMu serialises client requests; the client shares one message id
	// counter and one reply channel between them.
	callMu sync.Mutex

	mu            sync.Mutex
	subscriptions []*subscription
}

type subscription struct {
	entities []string
	channel  chan *stateChange
}

func (ha *haService) subscribe(entity string, channel chan *stateChange) {
	ha.subscribeMulti([]string{entity}, channel)
}

func (ha *haService) subscribeMulti(entities []string, channel chan *stateChange) {
	ha.mu.Lock()
	defer ha.mu.Unlock()
	for _, entity := range entities {
		if ha.client != nil {
			ha.callMu.Lock()
			ha.client.Add(entity)
			ha.callMu.Unlock()
		}
		found := false
		for _, sub := range ha.subscriptions {
			if sub.channel == channel {
				ha.logger.Debugw("added entity to subscription, existing channel", "entity", entity)
				sub.entities = append(sub.entities, entity)
				found = true
			}
		}

		if !found {
			ha.subscriptions = append(ha.subscriptions, &subscription{
				channel:  channel,
				entities: []string{entity},
			})
			ha.logger.Debugw("added entity to subscription, new channel", "entity", entity)
		}
	}
}

// publishCommand writes a command value to an input_number entity.
func (ha *haService) publishCommand(ctx context.Context, entity string, value float64) error {
	data := &SetValue{EntityID: entity, Value: value}
	return ha.callService(ctx, "input_number", "set_value", data, entity)
}

func (ha *haService) sendNotification(message string, device string) {
	if device == "" {
		return
	}
	data := &Notification{Title: "Speed control", Message: message}
	if err := ha.callService(ha.context, "notify", device, data, ""); err != nil {
		ha.logger.Warnw("could not send notification", "device", device, "error", err)
	}
}

// callService runs one service call under callMu and waits at most
// ha.timeout for it. A call that outlives the wait keeps the lock until the
// client returns.
func (ha *haService) callService(ctx context.Context, domain, service string, data interface{}, target string) error {
	done := make(chan error, 1)
	go func() {
		ha.callMu.Lock()
		defer ha.callMu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("%s.%s failed: %v", domain, service, r)
			}
		}()
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- ha.caller.CallService(ctx, domain, service, data, target)
	}()

	timer := time.NewTimer(ha.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return errors.Wrapf(err, "%s.%s", domain, service)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%s.%s", domain, service)
	case <-timer.C:
		return errors.Errorf("%s.%s: no reply within %v", domain, service, ha.timeout)
	}
}

func (ha *haService) run() {
	ha.logger.Info("start listening to messages from HA")
	ha.callMu.Lock()
	err := ha.client.SubscribeToUpdates(ha.context)
	ha.callMu.Unlock()
	if err != nil {
		ha.logger.Errorw("could not subscribe to updates", "error", err)
	}
Loop:
	for {
		select {
		case <-ha.context.Done():
			break Loop
		case message, ok := <-ha.client.EventChannel:
			if !ok {
				break Loop
			}
			entity := fmt.Sprint(message.Event.Data.EntityID)
			ha.dispatch(&stateChange{entity: entity, state: message.Event.Data.NewState.State})
		}
	}
	ha.logger.Info("stop listening to messages from HA")
}

// dispatch hands a state change to every subscription covering its entity.
// A pending change the subscriber has not picked up yet is replaced.
func (ha *haService) dispatch(change *stateChange) {
	ha.mu.Lock()
	defer ha.mu.Unlock()
	for _, sub := range ha.subscriptions {
		for _, entity := range sub.entities {
			if entity != change.entity {
				continue
			}
			select {
			case sub.channel <- change:
				continue
			default:
			}
			select {
			case stale := <-sub.channel:
				ha.logger.Debugw("replacing pending state change", "entity", stale.entity)
			default:
			}
			select {
			case sub.channel <- change:
			default:
			}
		}
	}
}
