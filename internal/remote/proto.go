package remote

import (
	"io"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"
)

// The wire contract of a remotely served unit is built at runtime rather
// than generated: a single RunnableService whose payloads are
// google.protobuf.Struct, so any JSON-shaped input and output fits without
// a schema compilation step.

const (
	protoFilePath = "langchain/runnable/v1/runnable.proto"
	protoPackage  = "langchain.runnable.v1"

	// ServiceName is the fully-qualified gRPC service implemented by a
	// remote unit host.
	ServiceName = protoPackage + ".RunnableService"
)

// Descriptors holds the built file descriptor and the method descriptors
// the transport dispatches on.
type Descriptors struct {
	File    protoreflect.FileDescriptor
	Service protoreflect.ServiceDescriptor

	Invoke protoreflect.MethodDescriptor
	Batch  protoreflect.MethodDescriptor
	Stream protoreflect.MethodDescriptor
}

// BuildDescriptors constructs the RunnableService descriptor set.
func BuildDescriptors() (*Descriptors, error) {
	structDesc := (&structpb.Struct{}).ProtoReflect().Descriptor()
	structType := protobuilder.FieldTypeImportedMessage(structDesc)

	fb := protobuilder.NewFile(protoFilePath)
	fb.SetPackageName(protoreflect.FullName(protoPackage))
	fb.SetSyntax(protoreflect.Proto3)

	invokeReq := protobuilder.NewMessage("InvokeRequest")
	addField(invokeReq, "input", structType, 1)
	addField(invokeReq, "config", structType, 2)

	invokeResp := protobuilder.NewMessage("InvokeResponse")
	addField(invokeResp, "output", structType, 1)

	batchReq := protobuilder.NewMessage("BatchRequest")
	items := protobuilder.NewField("items", protobuilder.FieldTypeMessage(invokeReq))
	items.SetNumber(1)
	items.SetRepeated()
	batchReq.AddField(items)
	addField(batchReq, "return_exceptions", protobuilder.FieldTypeScalar(protoreflect.BoolKind), 2)

	batchResult := protobuilder.NewMessage("BatchResult")
	addField(batchResult, "output", structType, 1)
	addField(batchResult, "error", protobuilder.FieldTypeScalar(protoreflect.StringKind), 2)

	batchResp := protobuilder.NewMessage("BatchResponse")
	results := protobuilder.NewField("results", protobuilder.FieldTypeMessage(batchResult))
	results.SetNumber(1)
	results.SetRepeated()
	batchResp.AddField(results)

	chunk := protobuilder.NewMessage("StreamChunk")
	addField(chunk, "chunk", structType, 1)

	sb := protobuilder.NewService("RunnableService")
	sb.AddMethod(protobuilder.NewMethod("Invoke",
		protobuilder.RpcTypeMessage(invokeReq, false),
		protobuilder.RpcTypeMessage(invokeResp, false),
	))
	sb.AddMethod(protobuilder.NewMethod("Batch",
		protobuilder.RpcTypeMessage(batchReq, false),
		protobuilder.RpcTypeMessage(batchResp, false),
	))
	sb.AddMethod(protobuilder.NewMethod("Stream",
		protobuilder.RpcTypeMessage(invokeReq, false),
		protobuilder.RpcTypeMessage(chunk, true),
	))

	for _, mb := range []*protobuilder.MessageBuilder{
		invokeReq, invokeResp, batchReq, batchResult, batchResp, chunk,
	} {
		fb.AddMessage(mb)
	}
	fb.AddService(sb)

	fd, err := fb.Build()
	if err != nil {
		return nil, err
	}
	svc := fd.Services().ByName("RunnableService")
	return &Descriptors{
		File:    fd,
		Service: svc,
		Invoke:  svc.Methods().ByName("Invoke"),
		Batch:   svc.Methods().ByName("Batch"),
		Stream:  svc.Methods().ByName("Stream"),
	}, nil
}

func addField(mb *protobuilder.MessageBuilder, name protoreflect.Name, ft *protobuilder.FieldType, number protoreflect.FieldNumber) {
	f := protobuilder.NewField(name, ft)
	f.SetNumber(number)
	mb.AddField(f)
}

// Render prints the service contract as a .proto source file, for hosts
// implementing the server side in another toolchain.
func Render(d *Descriptors, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(d.File, w)
}
