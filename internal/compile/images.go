package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
)

func init() {
	Register("token-images/create", func(c *Ctx) []fact.Edit {
		return imageCreate(c, fact.AttrRootTokenImages)
	})
	Register("token-images/remove", func(c *Ctx) []fact.Edit {
		return imageRemove(c, fact.AttrRootTokenImages)
	})
	Register("scene-images/create", func(c *Ctx) []fact.Edit {
		return imageCreate(c, fact.AttrRootSceneImages)
	})
	Register("scene-images/remove", func(c *Ctx) []fact.Edit {
		return imageRemove(c, fact.AttrRootSceneImages)
	})
}

// imageCreate registers an image record in one of the root libraries. The
// checksum is the record's identity: re-uploading bytes the store already
// knows upserts onto the existing entity, refreshing its metadata, and the
// library ref deduplicates. The image bytes themselves live in the
// gateway's asset table, keyed by the same checksum.
func imageCreate(c *Ctx, library fact.Attr) []fact.Edit {
	name, ok := c.Str(0)
	if !ok || name == "" {
		return nil
	}
	size, okSize := c.Float(1)
	w, okW := c.Float(2)
	h, okH := c.Float(3)
	checksum, okSum := c.Str(4)
	if !okSize || !okW || !okH || !okSum || checksum == "" {
		return nil
	}
	root, ok := c.Root()
	if !ok {
		return nil
	}

	img := c.Placeholder()
	return []fact.Edit{
		fact.Assert(img, fact.AttrImageChecksum, fact.String(checksum)),
		fact.Assert(img, fact.AttrImageName, fact.String(name)),
		fact.Assert(img, fact.AttrImageSize, fact.Int(int64(geom.Round(size)))),
		fact.Assert(img, fact.AttrImageWidth, fact.Int(int64(geom.Round(w)))),
		fact.Assert(img, fact.AttrImageHeight, fact.Int(int64(geom.Round(h)))),
		fact.Assert(root, library, fact.RefTo(img)),
	}
}

// imageRemove retracts a library record by checksum. Tokens and scenes
// referencing the checksum are untouched; renderers fall back to the
// default placeholder art when the record is gone.
func imageRemove(c *Ctx, library fact.Attr) []fact.Edit {
	checksum, ok := c.Str(0)
	if !ok || checksum == "" {
		return nil
	}
	root, ok := c.Root()
	if !ok {
		return nil
	}
	img, found := c.Snap.Lookup(fact.AttrImageChecksum, checksum)
	if !found || !keySet(c.Snap.Refs(root, library))[img] {
		return nil
	}
	return []fact.Edit{
		fact.Retract(root, library, fact.RefTo(img)),
		fact.RetractEntity(img),
	}
}
