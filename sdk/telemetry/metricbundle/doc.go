// Package metricbundle agrupa los instrumentos OpenTelemetry del copiador
// para que relay y agent compartan nombres, unidades y descripciones.
package metricbundle
