package scope

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client allows to connect to a scope server and receive frames.
type Client struct {
	address string

	conn *grpc.ClientConn
}

// NewClient creates a new client for the given address.
func NewClient(address string) *Client {
	return &Client{
		address: address,
	}
}

// Open the connection to the scope server.
func (c *Client) Open() error {
	if c.conn != nil {
		return errors.New("already connected")
	}

	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errors.Wrap(err, "cannot connect to scope server")
	}
	c.conn = conn

	return nil
}

// Close the connection to the scope server.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// GetFrames provides a set of channels to receive frames from the scope server. Both channels are closed when the
// stream ends.
func (c *Client) GetFrames(ctx context.Context) (chan *TimeFrame, chan *SpectralFrame, error) {
	if c.conn == nil {
		return nil, nil, errors.New("not connected")
	}
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], getFramesMethod)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open frame stream")
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, nil, errors.Wrap(err, "cannot request frames")
	}
	if err := stream.CloseSend(); err != nil {
		return nil, nil, errors.Wrap(err, "cannot request frames")
	}

	timeFrames := make(chan *TimeFrame, 1)
	spectralFrames := make(chan *SpectralFrame, 1)
	go func() {
		defer close(timeFrames)
		defer close(spectralFrames)
		for {
			rawFrame := new(structpb.Struct)
			if err := stream.RecvMsg(rawFrame); err != nil {
				return
			}

			frame, kind, err := readFrame(rawFrame)
			if err != nil {
				log.Debugf("invalid frame: %v", err)
				continue
			}
			switch kind {
			case kindTime:
				timeFrames <- readTimeFrame(frame, rawFrame.GetFields())
			case kindSpectral:
				spectralFrames <- readSpectralFrame(frame, rawFrame.GetFields())
			}
		}
	}()

	return timeFrames, spectralFrames, nil
}
