// Package wgpu implements the flare backend over gogpu/wgpu's hardware
// abstraction layer.
//
// The backend owns texture and render target storage, command encoding, and
// submission. Pipeline-level drawing (shaders, bind groups, vertex layout) is
// the host's business: register a DrawDispatcher to record actual draw calls
// into the render passes this backend opens. Without a dispatcher the backend
// still supports clears, copies, and multisample resolves.
//
// Command buffers accumulate across Draw and copy calls; Finish submits the
// batch behind a fence and blocks until the GPU drains it.
package wgpu
