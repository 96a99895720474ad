// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package flare is the GPU resource management and command scheduling core
// of a 2D rendering engine.
//
// flare decides which GPU-backed objects exist, when they are created, how
// they are reused across draw calls, and in what order deferred rendering
// work executes against a GPU backend. It is deliberately backend-agnostic:
// the concrete meaning of "bind a target" or "issue a draw" lives behind the
// [Gpu] interface (see backend/wgpu for a gogpu/wgpu implementation).
//
// # Resources and keys
//
// GPU-backed objects implement [Resource] and live in a per-context
// [ResourceCache]. Two kinds of cache keys exist:
//
//   - [ScratchKey]: shared by interchangeable resources. A scratch lookup
//     returns a match only while it has zero external references, so a
//     resource in use is never handed out twice.
//   - [UniqueKey]: exclusively bound to one live resource via a shared
//     ownership domain. Unique lookups bypass reference gating; every
//     request for the same key observes the identical resource.
//
// [CombineUniqueKey] derives variant keys (a mipmapped or rescaled version
// of a base resource) that share the original key's domain, so reference
// counts agree no matter which key they are observed through.
//
// # Proxies and tasks
//
// A [TextureProxy] or [RenderTargetProxy] is a lazily-resolved handle:
// allocation and decoding are deferred until first use at flush time, and
// resolution is idempotent. Deferred work is expressed as render tasks
// ([OpsRenderTask], [TextureCreateTask], [RenderTargetCopyTask],
// [TextureResolveTask]) accumulated by the [DrawingManager] and executed
// strictly in append order.
//
// # Concurrency
//
// A [Device] enforces single-writer access: every cache or task-graph
// mutation happens between LockContext and Unlock. Resource handles and key
// domains use atomic counters, so references may be dropped from worker
// threads without the lock; the final GPU release is deferred to the next
// locked purge pass.
package flare
