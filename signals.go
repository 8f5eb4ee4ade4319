package sealed

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for session and processor events.
var (
	SignalSessionOpened    = capitan.NewSignal("sealed.session.opened", "Session installed into a context")
	SignalSessionClosed    = capitan.NewSignal("sealed.session.closed", "Session closed with its algorithm and transforms")
	SignalTransformCreated = capitan.NewSignal("sealed.transform.created", "Algorithm created a transform")
	SignalTransformEvicted = capitan.NewSignal("sealed.transform.evicted", "Non-reusable transform closed on cleanup")
	SignalProcessorCreated = capitan.NewSignal("sealed.processor.created", "Processor instantiated")
	SignalStoreStart       = capitan.NewSignal("sealed.store.start", "Store operation beginning")
	SignalStoreComplete    = capitan.NewSignal("sealed.store.complete", "Store operation finished")
	SignalLoadStart        = capitan.NewSignal("sealed.load.start", "Load operation beginning")
	SignalLoadComplete     = capitan.NewSignal("sealed.load.complete", "Load operation finished")
)

// Keys for typed event data.
var (
	KeyAlgorithm      = capitan.NewStringKey("algorithm")
	KeySide           = capitan.NewStringKey("side")
	KeyReusable       = capitan.NewStringKey("reusable")
	KeyCount          = capitan.NewIntKey("count")
	KeyEncryptCreated = capitan.NewIntKey("encrypt_created")
	KeyDecryptCreated = capitan.NewIntKey("decrypt_created")
	KeyContentType    = capitan.NewStringKey("content_type")
	KeyTypeName       = capitan.NewStringKey("type_name")
	KeySize           = capitan.NewIntKey("size")
	KeyDuration       = capitan.NewDurationKey("duration")
	KeyError          = capitan.NewErrorKey("error")
	KeyEncryptedCount = capitan.NewIntKey("encrypted_count")
	KeyDecryptedCount = capitan.NewIntKey("decrypted_count")
)

func emitSessionOpened(ctx context.Context, algorithm string) {
	capitan.Emit(ctx, SignalSessionOpened,
		KeyAlgorithm.Field(algorithm),
	)
}

func emitSessionClosed(ctx context.Context, algorithm string, stats Stats, err error) {
	fields := []capitan.Field{
		KeyAlgorithm.Field(algorithm),
		KeyEncryptCreated.Field(stats.EncryptCreated),
		KeyDecryptCreated.Field(stats.DecryptCreated),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSessionClosed, fields...)
	} else {
		capitan.Emit(ctx, SignalSessionClosed, fields...)
	}
}

func emitTransformCreated(ctx context.Context, algorithm string, side Side, reusable bool, count int) {
	r := "false"
	if reusable {
		r = "true"
	}
	capitan.Emit(ctx, SignalTransformCreated,
		KeyAlgorithm.Field(algorithm),
		KeySide.Field(string(side)),
		KeyReusable.Field(r),
		KeyCount.Field(count),
	)
}

func emitTransformEvicted(ctx context.Context, algorithm string, side Side, count int) {
	capitan.Emit(ctx, SignalTransformEvicted,
		KeyAlgorithm.Field(algorithm),
		KeySide.Field(string(side)),
		KeyCount.Field(count),
	)
}

// emitProcessorCreated emits an event when a processor is created.
func emitProcessorCreated(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalProcessorCreated,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitStoreStart emits an event when store begins.
func emitStoreStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalStoreStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitStoreComplete emits an event when store finishes.
func emitStoreComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, encrypted int, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
		KeyEncryptedCount.Field(encrypted),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalStoreComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalStoreComplete, fields...)
	}
}

// emitLoadStart emits an event when load begins.
func emitLoadStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalLoadStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitLoadComplete emits an event when load finishes.
func emitLoadComplete(ctx context.Context, contentType, typeName string, duration time.Duration, decrypted int, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyDecryptedCount.Field(decrypted),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalLoadComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalLoadComplete, fields...)
	}
}
