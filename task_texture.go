package flare

// TextureCreateTask materializes a texture for a unique key at flush time,
// decoupling the decision to allocate or decode from the caller that
// requested it. Two variants exist: an empty allocation of a known shape,
// and a decode-backed creation that frees its decoded pixel buffer
// immediately after successful upload to bound peak memory.
//
// A creation runs at most once. A failed allocation or decode yields no
// resource and is not retried; a caller wanting another attempt must issue
// a new logical request under a fresh key.
type TextureCreateTask struct {
	context   *Context
	uniqueKey UniqueKey

	// Exactly one of the two variants is populated.
	desc      TextureDescriptor
	decoder   ImageDecoder
	mipmapped bool

	done bool
}

// newTextureCreateTask builds the empty-texture variant. Returns nil for
// non-positive dimensions, matching the nothing-to-draw contract.
func newTextureCreateTask(ctx *Context, key UniqueKey, desc TextureDescriptor) *TextureCreateTask {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil
	}
	return &TextureCreateTask{context: ctx, uniqueKey: key, desc: desc}
}

// newDecodedTextureCreateTask builds the decode-backed variant. Returns nil
// when decoder is nil.
func newDecodedTextureCreateTask(ctx *Context, key UniqueKey, decoder ImageDecoder, mipmapped bool) *TextureCreateTask {
	if decoder == nil {
		return nil
	}
	return &TextureCreateTask{context: ctx, uniqueKey: key, decoder: decoder, mipmapped: mipmapped}
}

// onMakeResource produces the texture, or nil on failure.
func (t *TextureCreateTask) onMakeResource() *Texture {
	ctx := t.context
	if t.decoder == nil {
		tex, err := MakeTexture(ctx, t.desc)
		if err != nil {
			Logger().Warn("flare: texture create failed", "err", err)
			return nil
		}
		return tex
	}
	buf, err := t.decoder.Decode()
	if err != nil {
		Logger().Warn("flare: image decode failed", "err", err)
		return nil
	}
	tex, err := MakeTextureFromBuffer(ctx, buf, t.mipmapped)
	if err != nil {
		Logger().Warn("flare: texture upload failed", "err", err)
		return nil
	}
	// Pixels are on the GPU; drop the decoded buffer right away to reduce
	// memory pressure.
	t.decoder = nil
	return tex
}

// instantiate runs the creation exactly once and assigns the task's unique
// key to the new texture. The returned texture carries one reference owned
// by the caller; nil means the creation failed or already ran.
func (t *TextureCreateTask) instantiate() *Texture {
	if t.done {
		return nil
	}
	t.done = true
	tex := t.onMakeResource()
	if tex == nil {
		return nil
	}
	if !t.uniqueKey.Empty() {
		t.context.ResourceCache().AssignUniqueKey(tex, t.uniqueKey)
	}
	return tex
}

// Execute materializes the texture unless an earlier resolution already did.
func (t *TextureCreateTask) Execute(Gpu) bool {
	if t.done {
		return true
	}
	tex := t.instantiate()
	if tex == nil {
		return false
	}
	// Cache-owned until a proxy resolves it through the key; the task holds
	// no reference past this point.
	Unref(tex)
	return true
}
