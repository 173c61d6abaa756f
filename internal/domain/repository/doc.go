// Package repository define las interfaces de acceso a datos del core de
// seguridad y las entidades que persisten.
//
// Los handlers y services dependen solo de estas interfaces; las
// implementaciones viven en internal/store (pg para producción, memory para
// desarrollo y tests). Las operaciones con semántica check-and-set
// (ConsumeMagicLink, Rotate, CreateForEvent) están especificadas aquí como
// atómicas: cada adapter debe implementarlas con una sola sentencia o
// transacción, nunca con read-then-write.
package repository
