package docblade

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "docblade"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context) (*IngestReport, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
	)

	report, err := mw.next.Ingest(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("corpus ingested",
		zap.Int("pages", report.Pages),
		zap.Int("chunks", report.Chunks),
		zap.Int("external_chunks", report.ExternalChunks),
		zap.Int("urls", len(report.Fetches)),
	)
	return report, nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, query string, k ...int) (*Answer, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("query", query),
	)

	if len(k) > 0 && k[0] > 0 {
		log = log.With(
			zap.Int("k", k[0]),
		)
	}

	answer, err := mw.next.Ask(ctx, query, k...)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("question answered", zap.Strings("sources", answer.Sources))
	return answer, nil
}

func (mw *loggingMiddleware) Sources(ctx context.Context) ([]string, error) {
	log := mw.log.With(
		zap.String("action", "sources"),
	)

	sources, err := mw.next.Sources(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("sources listed", zap.Int("count", len(sources)))
	return sources, nil
}
