package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
	"github.com/dealwatch/dealwatch/internal/tracker/discord"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

type Transport interface {
	Login(ctx context.Context) error
	Send(ctx context.Context, channelID string, message *discord.Message) (string, error)
	Fetch(ctx context.Context, channelID, messageID string) error
	Edit(ctx context.Context, channelID, messageID string, message *discord.Message) error
}

type RefSaver interface {
	SaveRefs(ctx context.Context, id string, refs models.MessageRefs) error
}

// Dispatcher turns a reconcile result into channel traffic. New and
// newly-hot items go out sequentially oldest-first through the pacer;
// updates and gone-edits fan out concurrently with per-item error
// isolation.
type Dispatcher struct {
	registry  *sources.Registry
	transport Transport
	refs      RefSaver
	pacer     *Pacer
	logger    *slog.Logger
}

func NewDispatcher(
	registry *sources.Registry,
	transport Transport,
	refs RefSaver,
	pacer *Pacer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		transport: transport,
		refs:      refs,
		pacer:     pacer,
		logger:    logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, result *core.Result) error {
	if result.Empty() {
		return nil
	}

	if err := d.transport.Login(ctx); err != nil {
		return err
	}

	var errs error

	errs = multierr.Append(errs, d.sendNew(ctx, result.New))
	errs = multierr.Append(errs, d.sendNewlyHot(ctx, result.NewlyHot))
	errs = multierr.Append(errs, d.editChanged(ctx, append(result.Updated, result.Gone...)))

	return errs
}

// sendNew walks the batch backwards so the oldest item lands first. The
// primary ref is persisted immediately after each send; a crash mid-batch
// then re-sends at most the unsent tail.
func (d *Dispatcher) sendNew(ctx context.Context, items []*models.Item) error {
	var errs error

	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]

		caps, err := d.registry.Lookup(item.Source)
		if err != nil {
			d.logger.Warn("skipping item for unknown source", "id", item.ID, "source", item.Source)
			continue
		}

		if err := d.sendPrimary(ctx, caps, item); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		if item.IsHot && caps.HotChannelID != "" {
			errs = multierr.Append(errs, d.sendHot(ctx, caps, item))
		}
	}

	return errs
}

func (d *Dispatcher) sendNewlyHot(ctx context.Context, items []*models.Item) error {
	var errs error

	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]

		caps, err := d.registry.Lookup(item.Source)
		if err != nil {
			d.logger.Warn("skipping item for unknown source", "id", item.ID, "source", item.Source)
			continue
		}

		if caps.HotChannelID == "" {
			continue
		}

		errs = multierr.Append(errs, d.sendHot(ctx, caps, item))
	}

	return errs
}

func (d *Dispatcher) sendPrimary(ctx context.Context, caps sources.Capabilities, item *models.Item) error {
	if err := d.pacer.Wait(ctx); err != nil {
		return err
	}

	messageID, err := d.transport.Send(ctx, caps.ChannelID, BuildMessage(caps, item))
	if err != nil {
		return err
	}

	item.Refs.Primary = messageID

	return d.refs.SaveRefs(ctx, item.ID, item.Refs)
}

func (d *Dispatcher) sendHot(ctx context.Context, caps sources.Capabilities, item *models.Item) error {
	if err := d.pacer.Wait(ctx); err != nil {
		return err
	}

	messageID, err := d.transport.Send(ctx, caps.HotChannelID, BuildMessage(caps, item))
	if err != nil {
		return err
	}

	item.Refs.Hot = messageID

	return d.refs.SaveRefs(ctx, item.ID, item.Refs)
}

func (d *Dispatcher) editChanged(ctx context.Context, items []*models.Item) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	for _, item := range items {
		wg.Add(1)

		go func(item *models.Item) {
			defer wg.Done()

			if err := d.editItem(ctx, item); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(item)
	}

	wg.Wait()

	return errs
}

func (d *Dispatcher) editItem(ctx context.Context, item *models.Item) error {
	caps, err := d.registry.Lookup(item.Source)
	if err != nil {
		d.logger.Warn("skipping edit for unknown source", "id", item.ID, "source", item.Source)
		return nil
	}

	// An item that never made it out (truncated cycle, failed send) has no
	// primary ref; send it fresh instead of editing.
	if item.Refs.Primary == "" {
		return d.sendPrimary(ctx, caps, item)
	}

	message := BuildMessage(caps, item)

	if err := d.transport.Fetch(ctx, caps.ChannelID, item.Refs.Primary); err != nil {
		if errors.IsMessageNotFound(err) {
			d.logger.Warn("primary message is gone, skipping edit",
				"id", item.ID, "message_id", item.Refs.Primary)
			return nil
		}

		return err
	}

	if err := d.transport.Edit(ctx, caps.ChannelID, item.Refs.Primary, message); err != nil {
		if errors.IsMessageNotFound(err) {
			d.logger.Warn("primary message is gone, skipping edit",
				"id", item.ID, "message_id", item.Refs.Primary)
			return nil
		}

		return err
	}

	if item.Refs.Hot == "" {
		return nil
	}

	if err := d.transport.Edit(ctx, caps.HotChannelID, item.Refs.Hot, message); err != nil {
		if errors.IsMessageNotFound(err) {
			d.logger.Warn("hot message is gone, skipping edit",
				"id", item.ID, "message_id", item.Refs.Hot)
			return nil
		}

		return err
	}

	return nil
}
