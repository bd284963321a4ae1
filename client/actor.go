package client

import (
	"context"
	"fmt"

	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/render"
	"github.com/jjones-jr/parview/rvp"
)

// Setup arms an actor on the remote worker. An empty ActorID in the
// request spawns a new actor for the block's rank; naming an existing
// actor redelivers its setup, which the worker confirms without
// reloading the block.
func (c *Client) Setup(ctx context.Context, req rvp.SetupRequest) (*rvp.SetupResponse, error) {
	resp, err := c.request(ctx, rvp.MethodActorSetup, req)
	if err != nil {
		return nil, err
	}

	var result rvp.SetupResponse
	if err := c.codec.DecodePayload(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal setup response: %w", err)
	}
	return &result, nil
}

// Render casts one frame from the actor's block with the given camera.
func (c *Client) Render(ctx context.Context, actorID string, cam render.Camera) (*render.Frame, error) {
	resp, err := c.request(ctx, rvp.MethodActorRender, rvp.RenderRequest{
		ActorID: actorID,
		Camera:  cam,
	})
	if err != nil {
		return nil, err
	}

	var result rvp.RenderResponse
	if err := c.codec.DecodePayload(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal render response: %w", err)
	}
	if result.Frame == nil {
		return nil, fmt.Errorf("render response carried no frame")
	}
	return result.Frame.Frame()
}

// UpdateTransfer replaces the actor's transfer function. A nil function
// resets to the data-range default.
func (c *Client) UpdateTransfer(ctx context.Context, actorID string, tf *render.TransferFunction) error {
	_, err := c.request(ctx, rvp.MethodActorTransfer, rvp.TransferRequest{
		ActorID:  actorID,
		Transfer: tf,
	})
	return err
}

// UpdateMode switches the actor's shading mode.
func (c *Client) UpdateMode(ctx context.Context, actorID string, mode render.Mode, isoValue float64) error {
	_, err := c.request(ctx, rvp.MethodActorMode, rvp.ModeRequest{
		ActorID:  actorID,
		Mode:     mode,
		IsoValue: isoValue,
	})
	return err
}

// Resize changes the actor's viewport for subsequent renders.
func (c *Client) Resize(ctx context.Context, actorID string, width, height int) error {
	_, err := c.request(ctx, rvp.MethodActorResize, rvp.ResizeRequest{
		ActorID: actorID,
		Width:   width,
		Height:  height,
	})
	return err
}

// ActorInfo retrieves a snapshot of one actor.
func (c *Client) ActorInfo(ctx context.Context, actorID string) (actor.Info, error) {
	var info actor.Info
	resp, err := c.request(ctx, rvp.MethodActorInfo, rvp.InfoRequest{
		ActorID: actorID,
	})
	if err != nil {
		return info, err
	}
	if err := c.codec.DecodePayload(resp.Data, &info); err != nil {
		return info, fmt.Errorf("unmarshal info response: %w", err)
	}
	return info, nil
}

// ListActors snapshots every actor hosted by the worker.
func (c *Client) ListActors(ctx context.Context) ([]actor.Info, error) {
	resp, err := c.request(ctx, rvp.MethodActorList, nil)
	if err != nil {
		return nil, err
	}

	var result rvp.ListResponse
	if err := c.codec.DecodePayload(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal list response: %w", err)
	}
	return result.Actors, nil
}

// CloseActor shuts the actor down and releases its block.
func (c *Client) CloseActor(ctx context.Context, actorID string) error {
	_, err := c.request(ctx, rvp.MethodActorClose, rvp.CloseRequest{
		ActorID: actorID,
	})
	return err
}
