package render

import (
	"bytes"
	"encoding/binary"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// The header is length, version, vendor ID and device ID as 32-bit values
// followed by the cache UUID.
const cacheHeaderSize = 4*4 + 16

// VK_PIPELINE_CACHE_HEADER_VERSION_ONE
const cacheHeaderVersionOne = 1

type cacheIdentity struct {
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

func (c *Context) cacheIdentity() cacheIdentity {
	return cacheIdentity{
		VendorID: uint32(c.Properties.VendorID),
		DeviceID: uint32(c.Properties.DeviceID),
		UUID:     c.Properties.PipelineCacheUUID,
	}
}

// validateCacheHeader reports why data cannot seed a pipeline cache on the
// device described by want.
func validateCacheHeader(data []byte, want cacheIdentity) error {
	if len(data) < cacheHeaderSize {
		return errors.Newf("cache holds %d bytes, shorter than its header", len(data))
	}

	var headerLength, headerVersion, vendorID, deviceID uint32
	var cacheUUID uuid.UUID
	reader := bytes.NewReader(data)
	for _, field := range []any{&headerLength, &headerVersion, &vendorID, &deviceID, &cacheUUID} {
		err := binary.Read(reader, common.ByteOrder, field)
		if err != nil {
			return errors.Wrap(err, "read cache header")
		}
	}

	if headerLength < cacheHeaderSize {
		return errors.Newf("bad header length 0x%x", headerLength)
	}
	if headerVersion != cacheHeaderVersionOne {
		return errors.Newf("unsupported cache header version 0x%x", headerVersion)
	}
	if vendorID != want.VendorID {
		return errors.Newf("vendor ID mismatch: cache 0x%x, driver 0x%x", vendorID, want.VendorID)
	}
	if deviceID != want.DeviceID {
		return errors.Newf("device ID mismatch: cache 0x%x, driver 0x%x", deviceID, want.DeviceID)
	}
	if cacheUUID != want.UUID {
		return errors.Newf("UUID mismatch: cache %s, driver %s", cacheUUID, want.UUID)
	}

	return nil
}

// PipelineCache is a driver pipeline cache optionally persisted to a file
// between runs.
type PipelineCache struct {
	ctx  *Context
	path string

	Handle core1_0.PipelineCache
}

// NewPipelineCache creates a cache seeded from path when the file exists and
// was written by the same driver and device. A stale file is removed.
func NewPipelineCache(ctx *Context, path string) (*PipelineCache, error) {
	initialData := loadCacheData(path, ctx.cacheIdentity())

	cache, _, err := ctx.Device.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline cache")
	}

	return &PipelineCache{
		ctx:    ctx,
		path:   path,
		Handle: cache,
	}, nil
}

func loadCacheData(path string, want cacheIdentity) []byte {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No pipeline cache at %s, starting empty", path)
		return nil
	} else if err != nil {
		log.Printf("Reading pipeline cache %s: %v", path, err)
		return nil
	}

	err = validateCacheHeader(data, want)
	if err != nil {
		log.Printf("Discarding pipeline cache %s: %v", path, err)
		// The file is rewritten on shutdown either way.
		_ = os.Remove(path)
		return nil
	}

	log.Printf("Loaded %d bytes of pipeline cache from %s", len(data), path)
	return data
}

// Save writes the cache contents to its file, if it has one.
func (p *PipelineCache) Save() error {
	if p.path == "" {
		return nil
	}

	data, _, err := p.ctx.Device.GetPipelineCacheData(p.Handle)
	if err != nil {
		return errors.Wrap(err, "read pipeline cache data")
	}

	err = os.WriteFile(p.path, data, 0o644)
	if err != nil {
		return errors.Wrapf(err, "write pipeline cache %s", p.path)
	}
	return nil
}

func (p *PipelineCache) Destroy() {
	p.ctx.Device.DestroyPipelineCache(p.Handle, nil)
}
