package docblade

import (
	"context"
	"errors"
)

// ProxyMiddleware backs the Service interface with remote endpoints, letting
// thin front ends query a docblade instance running elsewhere.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Ingest(ctx context.Context) (*IngestReport, error) {
	resp, err := mw.endpoints.Ingest(ctx, nil)
	if err != nil {
		return nil, err
	}

	report, ok := resp.(*IngestReport)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return report, nil
}

func (mw *proxyMiddleware) Ask(ctx context.Context, query string, k ...int) (*Answer, error) {
	n := 0
	if len(k) > 0 {
		n = k[0]
	}

	req := AskRequest{
		Query: query,
		K:     n,
	}

	resp, err := mw.endpoints.Ask(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, ok := resp.(*Answer)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return answer, nil
}

func (mw *proxyMiddleware) Sources(ctx context.Context) ([]string, error) {
	resp, err := mw.endpoints.Sources(ctx, nil)
	if err != nil {
		return nil, err
	}

	sources, ok := resp.([]string)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return sources, nil
}
