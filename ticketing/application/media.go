package application

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// MediaRouter despacha la descarga al fetcher del transporte del canal.
type MediaRouter struct {
	direct MediaFetcher
	cloud  MediaFetcher
}

func NewMediaRouter(direct, cloud MediaFetcher) *MediaRouter {
	return &MediaRouter{direct: direct, cloud: cloud}
}

// SetDirect conecta el fetcher del socket una vez creado; el manager necesita
// el pipeline para construirse, así que se enlaza después.
func (r *MediaRouter) SetDirect(f MediaFetcher) {
	r.direct = f
}

func (r *MediaRouter) Fetch(ctx context.Context, ch domain.ChannelInstance, content domain.MessageContent) (string, error) {
	switch ch.Kind {
	case domain.ChannelKindDirect:
		if r.direct == nil {
			return "", fmt.Errorf("direct media fetcher not configured")
		}
		return r.direct.Fetch(ctx, ch, content)
	case domain.ChannelKindCloud:
		if r.cloud == nil {
			return "", fmt.Errorf("cloud media fetcher not configured")
		}
		return r.cloud.Fetch(ctx, ch, content)
	default:
		return "", fmt.Errorf("unknown channel kind %q", ch.Kind)
	}
}
