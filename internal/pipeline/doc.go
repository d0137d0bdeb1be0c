// Package pipeline moves frames from an ffmpeg decoder through a bounded
// work queue and a Scaler into a shared output buffer that an ffmpeg encoder
// drains in frame order.
//
// The stages share three primitives:
//   - the work queue, a buffered channel of Job values closed by the Decoder
//   - the Buffer, one fill-once slot per frame with poisoning through Fail
//   - the Pause flag, which every stage checks at each bounded wait
//
// Runner owns the cross-stage contract: when one stage fails, the others are
// cancelled and the errors that caused it are joined into the result.
//
// Example:
//
//	plan, err := pipeline.BuildPlan(src, req, info, gpus)
//	if err != nil {
//	    return err
//	}
//	r := pipeline.NewRunner(plan, pool, pipeline.RunnerOptions{Bus: bus})
//	err = r.Run(ctx)
package pipeline
