package service

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/sirupsen/logrus"
)

// TranslatorServiceName is the fully-qualified gRPC service name.
const TranslatorServiceName = "neurotranslate.v1.TranslatorService"

// Full method names.
const (
	MethodTranslate      = "/" + TranslatorServiceName + "/Translate"
	MethodDetectLanguage = "/" + TranslatorServiceName + "/DetectLanguage"
	MethodListLanguages  = "/" + TranslatorServiceName + "/ListLanguages"
)

// TranslatorServer is the gRPC surface. Messages are google.protobuf.Struct
// so that no generated stubs are required.
type TranslatorServer interface {
	Translate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DetectLanguage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListLanguages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// TranslationService implements TranslatorServer over an Orchestrator.
type TranslationService struct {
	Orchestrator *Orchestrator
	Logger       *logrus.Logger
}

// NewTranslationService creates a new TranslationService instance.
func NewTranslationService(orchestrator *Orchestrator, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationService{
		Orchestrator: orchestrator,
		Logger:       logger,
	}
}

// Translate translates text. Request fields: text, source, target, mode, file_name.
func (s *TranslationService) Translate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	tr := TranslationRequest{
		Text:       fields["text"].GetStringValue(),
		SourceCode: fields["source"].GetStringValue(),
		TargetCode: fields["target"].GetStringValue(),
		Mode:       Mode(fields["mode"].GetStringValue()),
		FileName:   fields["file_name"].GetStringValue(),
	}

	s.Logger.WithFields(logrus.Fields{
		"source":      tr.SourceCode,
		"target":      tr.TargetCode,
		"mode":        tr.Mode,
		"text_length": len(tr.Text),
	}).Info("[gRPC] Translate request received")

	if tr.Mode != "" && tr.Mode != ModeText && tr.Mode != ModeFile {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("unsupported mode: %s", tr.Mode))
	}

	res, err := s.Orchestrator.Handle(ctx, tr)
	if err != nil {
		if reqErr, ok := AsRequestError(err); ok {
			return nil, status.Error(reqErr.GRPCCode(), reqErr.UserMessage())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	return structpb.NewStruct(map[string]interface{}{
		"request_id":  res.RequestID,
		"translation": res.OutputText,
		"source":      res.SourceCode,
		"target":      res.TargetCode,
		"detected":    res.DetectedCode,
		"model_id":    res.ModelID,
		"fallback":    res.Fallback,
		"file_name":   res.FileName,
	})
}

// DetectLanguage reports the detected language of text, or "und".
func (s *TranslationService) DetectLanguage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := req.GetFields()["text"].GetStringValue()
	if text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}

	code := s.Orchestrator.Detect(text)
	name := ""
	if code != language.Unknown {
		name, _ = s.Orchestrator.Catalog().NameFor(code)
	}
	return structpb.NewStruct(map[string]interface{}{
		"code": code,
		"name": name,
	})
}

// ListLanguages returns the catalog in selector order.
func (s *TranslationService) ListLanguages(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries := s.Orchestrator.Catalog().Entries()
	langs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, map[string]interface{}{
			"name": e.Name,
			"code": e.Code,
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"languages": langs,
	})
}

// RegisterTranslatorServer registers srv on s.
func RegisterTranslatorServer(s grpc.ServiceRegistrar, srv TranslatorServer) {
	s.RegisterService(&translatorServiceDesc, srv)
}

var translatorServiceDesc = grpc.ServiceDesc{
	ServiceName: TranslatorServiceName,
	HandlerType: (*TranslatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Translate", Handler: unaryHandler(MethodTranslate, TranslatorServer.Translate)},
		{MethodName: "DetectLanguage", Handler: unaryHandler(MethodDetectLanguage, TranslatorServer.DetectLanguage)},
		{MethodName: "ListLanguages", Handler: unaryHandler(MethodListLanguages, TranslatorServer.ListLanguages)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "neurotranslate/v1/translator.proto",
}

type unaryMethod func(TranslatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TranslatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TranslatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TranslatorClient calls TranslatorService over a client connection.
type TranslatorClient struct {
	cc grpc.ClientConnInterface
}

// NewTranslatorClient creates a client on cc.
func NewTranslatorClient(cc grpc.ClientConnInterface) *TranslatorClient {
	return &TranslatorClient{cc: cc}
}

func (c *TranslatorClient) invoke(ctx context.Context, method string, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Translate calls the Translate RPC.
func (c *TranslatorClient) Translate(ctx context.Context, text, source, target string, mode Mode, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodTranslate, map[string]interface{}{
		"text":   text,
		"source": source,
		"target": target,
		"mode":   string(mode),
	}, opts...)
}

// DetectLanguage calls the DetectLanguage RPC.
func (c *TranslatorClient) DetectLanguage(ctx context.Context, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDetectLanguage, map[string]interface{}{"text": text}, opts...)
}

// ListLanguages calls the ListLanguages RPC.
func (c *TranslatorClient) ListLanguages(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListLanguages, map[string]interface{}{}, opts...)
}
