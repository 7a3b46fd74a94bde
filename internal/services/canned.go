package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

// CannedTranslation is returned by CannedTranslator.
const CannedTranslation = "Translated content would appear here..."

// CannedFeatures is returned by CannedFeatureExtractor.
var CannedFeatures = []string{
	"Multi-factor authentication support",
	"Cloud-native architecture deployment",
	"RESTful API integration capabilities",
	"Real-time data synchronization",
	"Advanced user role management",
	"Automated backup and recovery",
	"Cross-platform compatibility",
	"Integration with existing ERP systems",
	"Custom reporting and analytics",
	"24/7 technical support and maintenance",
	"Scalable infrastructure design",
	"Data encryption and security compliance",
}

const cannedScopeTemplate = `# Scope of Work

## Project Overview
Development of a comprehensive enterprise software solution that meets all specified requirements and integrates seamlessly with existing business processes.

## Core Deliverables

### 1. System Architecture & Design
- **Cloud-native architecture** implementation
- **Scalable infrastructure** design and deployment
- **Security framework** establishment with multi-factor authentication
- **API gateway** setup for RESTful integration capabilities

### 2. Core Platform Development
- **User management system** with advanced role-based access control
- **Real-time data synchronization** across all modules
- **Cross-platform compatibility** ensuring seamless operation
- **Integration interfaces** for existing ERP systems

### 3. Data Management & Analytics
- **Custom reporting engine** with advanced analytics capabilities
- **Automated backup and recovery** system implementation
- **Data encryption** and security compliance measures
- **Performance monitoring** and optimization tools

### 4. Support & Maintenance
- **24/7 technical support** infrastructure setup
- **Documentation** and training materials development
- **Quality assurance** testing and validation procedures
- **Deployment** and go-live support

## Technical Requirements
- Implementation of all %d identified features
- Compliance with industry security standards
- Performance benchmarks and SLA agreements
- Comprehensive testing and validation protocols

## Timeline & Milestones
- **Phase 1:** Architecture & Planning (Weeks 1-4)
- **Phase 2:** Core Development (Weeks 5-16)
- **Phase 3:** Integration & Testing (Weeks 17-20)
- **Phase 4:** Deployment & Support (Weeks 21-24)

## Success Criteria
- All functional requirements met
- Performance benchmarks achieved
- Security compliance verified
- User acceptance testing completed successfully`

// CannedTranslator, CannedFeatureExtractor and CannedScopeSynthesizer return
// fixed outputs after Delay. They back local development and demos.
type CannedTranslator struct{ Delay time.Duration }

// Translate implements pipeline.Translator.
func (c CannedTranslator) Translate(ctx context.Context, _ pipeline.FileRef) (pipeline.TranslationOutput, error) {
	if err := sleep(ctx, c.Delay); err != nil {
		return pipeline.TranslationOutput{}, err
	}
	return pipeline.TranslationOutput{Text: CannedTranslation}, nil
}

type CannedFeatureExtractor struct{ Delay time.Duration }

// ExtractFeatures implements pipeline.FeatureExtractor.
func (c CannedFeatureExtractor) ExtractFeatures(ctx context.Context, _ pipeline.FileRef, _ pipeline.TranslationOutput) (pipeline.FeatureList, error) {
	if err := sleep(ctx, c.Delay); err != nil {
		return pipeline.FeatureList{}, err
	}
	items := make([]string, len(CannedFeatures))
	copy(items, CannedFeatures)
	return pipeline.FeatureList{Items: items}, nil
}

type CannedScopeSynthesizer struct{ Delay time.Duration }

// SynthesizeScope implements pipeline.ScopeSynthesizer.
func (c CannedScopeSynthesizer) SynthesizeScope(ctx context.Context, features pipeline.FeatureList) (pipeline.ScopeOutput, error) {
	if err := sleep(ctx, c.Delay); err != nil {
		return pipeline.ScopeOutput{}, err
	}
	return pipeline.ScopeOutput{Markdown: fmt.Sprintf(cannedScopeTemplate, features.Len())}, nil
}

// CannedProcessors bundles the three canned stages.
func CannedProcessors(delay time.Duration) pipeline.Processors {
	return pipeline.Processors{
		Translator: CannedTranslator{Delay: delay},
		Features:   CannedFeatureExtractor{Delay: delay},
		Scope:      CannedScopeSynthesizer{Delay: delay},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
