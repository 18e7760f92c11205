package scope

import (
	"net"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultOutBufferSize = 10

	serviceName     = "dcf39.scope.Scope"
	getFramesMethod = "/" + serviceName + "/GetFrames"
)

// frameServer is the server side of the scope service:
//
//	service Scope {
//	  rpc GetFrames(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
type frameServer interface {
	GetFrames(*emptypb.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*frameServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetFrames",
			Handler:       getFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "scope.proto",
}

func getFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(frameServer).GetFrames(request, stream)
}

type grpcServer struct {
	address  *net.TCPAddr
	listener net.Listener
	server   *grpc.Server

	outBufferSize int
	in            chan *structpb.Struct
	register      chan chan *structpb.Struct
	out           []chan *structpb.Struct
	shutdown      chan struct{}
}

func newGRPCServer(address string, outBufferSize int) (*grpcServer, error) {
	result := &grpcServer{
		outBufferSize: outBufferSize,
		in:            make(chan *structpb.Struct),
		register:      make(chan chan *structpb.Struct),
		shutdown:      make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve address %s", address)
	}
	result.address = localAddress

	return result, nil
}

func (s *grpcServer) run() {
	for {
		select {
		case <-s.shutdown:
			for _, out := range s.out {
				close(out)
			}
			s.out = nil
			return
		case out := <-s.register:
			s.addStream(out)
		case frame := <-s.in:
			s.sendFrameToStreams(frame)
		}
	}
}

func (s *grpcServer) addStream(out chan *structpb.Struct) {
	s.out = append(s.out, out)
}

func (s *grpcServer) sendFrameToStreams(frame *structpb.Struct) {
	active := s.out[:0]
	for _, out := range s.out {
		select {
		case out <- frame:
			active = append(active, out)
		default:
			close(out)
		}
	}
	clear(s.out[len(active):])
	s.out = active
}

func (s *grpcServer) getFrameStream() chan *structpb.Struct {
	result := make(chan *structpb.Struct, s.outBufferSize)
	select {
	case s.register <- result:
	case <-s.shutdown:
		close(result)
	}
	return result
}

// listen binds the listening socket. It must be called before Start.
func (s *grpcServer) listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address.String())
	if err != nil {
		return errors.Wrapf(err, "cannot listen on address %s", s.address)
	}
	s.listener = listener
	return nil
}

// Start serves the scope service until Stop is called.
func (s *grpcServer) Start() error {
	if s.server != nil {
		return errors.New("server already running")
	}
	if err := s.listen(); err != nil {
		return err
	}

	go s.run()

	s.server = grpc.NewServer()
	s.server.RegisterService(&serviceDesc, s)
	err := s.server.Serve(s.listener)
	close(s.shutdown)
	return err
}

func (s *grpcServer) Stop() {
	if s.server == nil {
		return
	}
	s.server.Stop()
	s.server = nil
}

// Addr returns the listening address, or nil if the server does not listen.
func (s *grpcServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *grpcServer) GetFrames(_ *emptypb.Empty, stream grpc.ServerStream) error {
	frames := s.getFrameStream()
	for {
		select {
		case frame, open := <-frames:
			if !open {
				return nil
			}
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *grpcServer) SendFrame(frame *structpb.Struct) {
	if s.server == nil {
		return
	}
	select {
	case s.in <- frame:
	case <-s.shutdown:
	}
}
